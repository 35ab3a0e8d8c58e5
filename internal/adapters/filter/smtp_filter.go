package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/extract"
	"github.com/mikey/email-classifier/internal/ports"
)

// Headers added to every filtered message
const (
	HeaderCategory      = "X-Email-Category"
	HeaderConfidence    = "X-Email-Confidence"
	HeaderJustification = "X-Email-Justification"
	HeaderError         = "X-Email-Classification-Error"
)

// SMTPOptions configures the SMTP intake filter
type SMTPOptions struct {
	ListenAddr      string
	Domain          string
	MaxMessageBytes int64
	// ClassifyTimeout bounds one classification, retries included
	ClassifyTimeout time.Duration
	RelayEnabled    bool
	RelayAddr       string
	RelayPort       int
}

// SMTPFilter is an SMTP content filter that annotates messages with their classification
type SMTPFilter struct {
	service       ports.Classifier
	limiter       core.RateLimiter
	onRateLimited func()
	logger        *zap.Logger
	opts          SMTPOptions
	server        *smtp.Server
	deliver       func(sender string, recipients []string, data []byte) error
}

// NewSMTPFilter creates a new SMTP content filter.
// limiter and onRateLimited may be nil.
func NewSMTPFilter(service ports.Classifier, limiter core.RateLimiter, onRateLimited func(), logger *zap.Logger, opts SMTPOptions) *SMTPFilter {
	if opts.Domain == "" {
		opts.Domain = "localhost"
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 30 * 1024 * 1024
	}
	if opts.ClassifyTimeout <= 0 {
		opts.ClassifyTimeout = 3 * time.Minute
	}

	f := &SMTPFilter{
		service:       service,
		limiter:       limiter,
		onRateLimited: onRateLimited,
		logger:        logger,
		opts:          opts,
	}
	f.deliver = f.sendToRelay
	return f
}

// Start starts the SMTP listener in the background
func (f *SMTPFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})
	f.server.Addr = f.opts.ListenAddr
	f.server.Domain = f.opts.Domain
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = f.opts.MaxMessageBytes
	f.server.MaxRecipients = 50

	listener, err := net.Listen("tcp", f.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.opts.ListenAddr, err)
	}

	f.logger.Info("SMTP filter starting",
		zap.String("address", listener.Addr().String()),
		zap.Bool("relay", f.opts.RelayEnabled))

	go func() {
		if err := f.server.Serve(listener); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the SMTP listener
func (f *SMTPFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail classifies an email
func (f *SMTPFilter) ProcessEmail(ctx context.Context, email *ports.Email) (*core.ClassificationResult, error) {
	return f.service.ClassifyEmail(ctx, email.Text())
}

// annotate prepends the classification headers to the raw message
func annotate(raw []byte, result *core.ClassificationResult, classifyErr error) []byte {
	var out bytes.Buffer
	if classifyErr != nil {
		fmt.Fprintf(&out, "%s: %s\r\n", HeaderError, core.ErrorCode(classifyErr))
	} else {
		fmt.Fprintf(&out, "%s: %s\r\n", HeaderCategory, result.Category)
		fmt.Fprintf(&out, "%s: %.4f\r\n", HeaderConfidence, result.Confidence)
		if result.Justification != nil && strings.TrimSpace(*result.Justification) != "" {
			fmt.Fprintf(&out, "%s: %s\r\n", HeaderJustification, encodeHeader(*result.Justification))
		}
	}
	out.Write(raw)
	return out.Bytes()
}

func encodeHeader(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	return mime.QEncoding.Encode("utf-8", value)
}

// sendToRelay sends the annotated message to the configured relay using go-smtp
func (f *SMTPFilter) sendToRelay(sender string, recipients []string, data []byte) error {
	relayAddr := net.JoinHostPort(f.opts.RelayAddr, strconv.Itoa(f.opts.RelayPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", relayAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}

	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *SMTPFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	remoteIP := ""
	if addr, ok := c.Conn().RemoteAddr().(*net.TCPAddr); ok {
		remoteIP = addr.IP.String()
	}
	return &smtpSession{
		filter:   b.filter,
		remoteIP: remoteIP,
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *SMTPFilter
	remoteIP   string
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data classifies the message, annotates it and relays it
func (s *smtpSession) Data(r io.Reader) error {
	f := s.filter

	raw, err := io.ReadAll(r)
	if err != nil {
		f.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		f.logger.Error("Failed to parse email message", zap.Error(err))
		return &smtp.SMTPError{Code: 554, EnhancedCode: smtp.EnhancedCode{5, 6, 0}, Message: "Malformed message"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.opts.ClassifyTimeout)
	defer cancel()

	if f.limiter != nil {
		var rateLimit *core.RateLimitError
		if err := f.limiter.Admit(ctx, s.remoteIP); errors.As(err, &rateLimit) {
			if f.onRateLimited != nil {
				f.onRateLimited()
			}
			f.logger.Info("Deferring rate limited message",
				zap.String("client_ip", s.remoteIP),
				zap.Int("retry_after", rateLimit.RetryAfter))
			return &smtp.SMTPError{
				Code:         451,
				EnhancedCode: smtp.EnhancedCode{4, 7, 1},
				Message:      fmt.Sprintf("Rate limit exceeded, retry in %d seconds", rateLimit.RetryAfter),
			}
		} else if err != nil {
			f.logger.Warn("Rate limiter failed, admitting message", zap.Error(err))
		}
	}

	email := &ports.Email{
		From:    s.sender,
		To:      s.recipients,
		Subject: extract.DecodeHeader(msg.Header.Get("Subject")),
	}

	var result *core.ClassificationResult
	body, classifyErr := extract.MessageText(msg)
	if classifyErr != nil {
		classifyErr = fmt.Errorf("%w: %v", core.ErrExtractionFailure, classifyErr)
	} else {
		email.Body = body
		result, classifyErr = f.ProcessEmail(ctx, email)
	}

	if classifyErr != nil {
		f.logger.Error("Failed to classify email",
			zap.Error(classifyErr),
			zap.String("sender", email.From))
	}

	annotated := annotate(raw, result, classifyErr)

	if f.opts.RelayEnabled {
		if err := f.deliver(s.sender, s.recipients, annotated); err != nil {
			f.logger.Error("Failed to relay email",
				zap.Error(err),
				zap.String("sender", email.From))
			return err
		}
	} else {
		f.logger.Debug("Relay disabled, message accepted without forwarding")
	}

	fields := []zap.Field{
		zap.String("from", email.From),
		zap.Int("recipients", len(email.To)),
		zap.String("outcome", core.ErrorCode(classifyErr)),
	}
	if result != nil {
		fields = append(fields,
			zap.String("category", string(result.Category)),
			zap.Float64("confidence", result.Confidence))
	}
	f.logger.Info("Processed email", fields...)

	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
