// Package mail implements the inbound/outbound mail transport that
// drives "mail_event" boards. Unlike transport/http and transport/chat,
// no repo in the retrieval pack wraps SMTP or IMAP in a third-party
// client, so this transport is deliberately built on net/smtp for
// sending and a minimal hand-rolled IMAP IDLE-free poll loop for
// receiving -- see DESIGN.md for why no pack dependency could serve
// either side of this transport.
package mail

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/lyzr/flowengine/flow/board"
	execctx "github.com/lyzr/flowengine/flow/context"
	"github.com/lyzr/flowengine/flow/scheduler"
	"github.com/lyzr/flowengine/flow/value"
)

// Logger is the minimal surface this package needs.
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// SMTPConfig holds the outbound relay settings used to notify a run's
// caller of results, mirroring the shape of this codebase's other
// external client configs (host/port/credentials).
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender delivers plain-text mail through an SMTP relay via net/smtp's
// PlainAuth + SendMail, the stdlib's own idiomatic path for this and the
// one this dependency stack has nothing better to offer for.
type Sender struct {
	cfg SMTPConfig
}

func NewSender(cfg SMTPConfig) *Sender {
	return &Sender{cfg: cfg}
}

func (s *Sender) Send(to []string, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.cfg.From, strings.Join(to, ","), subject, body)
	return smtp.SendMail(addr, auth, s.cfg.From, to, []byte(msg))
}

// IMAPConfig holds the mailbox polling settings.
type IMAPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Mailbox    string
	PollPeriod time.Duration
}

// Poller periodically checks a mailbox via a minimal hand-rolled IMAP4
// client (LOGIN / SELECT / UID SEARCH UNSEEN / UID FETCH) and triggers
// the "mail_event" start node of a board for each unseen message.
//
// This is not a general-purpose IMAP client: it speaks just enough of
// the protocol to list and fetch unseen messages on a fixed poll
// interval, the same scope given to this codebase's narrowest external
// integrations (e.g. external/httpclient's bare Do/Get/Post surface).
type Poller struct {
	cfg       IMAPConfig
	boardID   string
	boards    *board.Service
	scheduler *scheduler.Scheduler
	services  execctx.Services
	log       Logger
}

func NewPoller(cfg IMAPConfig, boardID string, boards *board.Service, sched *scheduler.Scheduler, services execctx.Services, log Logger) *Poller {
	return &Poller{cfg: cfg, boardID: boardID, boards: boards, scheduler: sched, services: services, log: log}
}

// Run polls until ctx is cancelled, logging (rather than failing hard
// on) transient connection errors so one bad poll cycle doesn't take
// the whole transport down.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.pollOnce(ctx); err != nil {
				p.log.Error("mail poll failed", "error", err)
			}
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) error {
	conn, err := p.dial()
	if err != nil {
		return fmt.Errorf("dial imap: %w", err)
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	if _, err := p.readGreeting(r); err != nil {
		return err
	}
	if err := p.command(conn, r, "a1", fmt.Sprintf("LOGIN %s %s", p.cfg.Username, p.cfg.Password)); err != nil {
		return fmt.Errorf("imap login: %w", err)
	}
	if err := p.command(conn, r, "a2", fmt.Sprintf("SELECT %s", p.cfg.Mailbox)); err != nil {
		return fmt.Errorf("imap select: %w", err)
	}

	uids, err := p.searchUnseen(conn, r)
	if err != nil {
		return fmt.Errorf("imap search: %w", err)
	}

	for _, uid := range uids {
		msg, err := p.fetch(conn, r, uid)
		if err != nil {
			p.log.Error("imap fetch failed", "uid", uid, "error", err)
			continue
		}
		p.trigger(ctx, msg)
	}
	return nil
}

func (p *Poller) dial() (net.Conn, error) {
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
	return tls.Dial("tcp", addr, &tls.Config{ServerName: p.cfg.Host})
}

func (p *Poller) readGreeting(r *bufio.Reader) (string, error) {
	return r.ReadString('\n')
}

// command issues one tagged IMAP command and reads lines until the
// matching tagged response, returning an error unless that response is
// "OK".
func (p *Poller) command(conn net.Conn, r *bufio.Reader, tag, cmd string) error {
	if _, err := fmt.Fprintf(conn, "%s %s\r\n", tag, cmd); err != nil {
		return err
	}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return err
		}
		if strings.HasPrefix(line, tag+" ") {
			if strings.Contains(line, tag+" OK") {
				return nil
			}
			return fmt.Errorf("imap command %q failed: %s", cmd, strings.TrimSpace(line))
		}
	}
}

func (p *Poller) searchUnseen(conn net.Conn, r *bufio.Reader) ([]string, error) {
	tag := "a3"
	if _, err := fmt.Fprintf(conn, "%s UID SEARCH UNSEEN\r\n", tag); err != nil {
		return nil, err
	}
	var uids []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(line, "* SEARCH") {
			uids = strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "* SEARCH"))
			continue
		}
		if strings.HasPrefix(line, tag+" ") {
			if strings.Contains(line, tag+" OK") {
				return uids, nil
			}
			return nil, fmt.Errorf("imap search failed: %s", strings.TrimSpace(line))
		}
	}
}

// inboundMessage is the minimal shape this poller extracts per UID;
// real header/body parsing is left to whatever produced the fetch, a
// scope this transport deliberately keeps narrow.
type inboundMessage struct {
	From    string
	Subject string
	Body    string
}

func (p *Poller) fetch(conn net.Conn, r *bufio.Reader, uid string) (*inboundMessage, error) {
	tag := "a4"
	if _, err := fmt.Fprintf(conn, "%s UID FETCH %s (BODY[])\r\n", tag, uid); err != nil {
		return nil, err
	}
	var raw strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(line, tag+" ") {
			if strings.Contains(line, tag+" OK") {
				break
			}
			return nil, fmt.Errorf("imap fetch failed: %s", strings.TrimSpace(line))
		}
		raw.WriteString(line)
	}
	return parseMessage(raw.String()), nil
}

func parseMessage(raw string) *inboundMessage {
	msg := &inboundMessage{}
	lines := strings.Split(raw, "\n")
	body := false
	var bodyLines []string
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if !body {
			switch {
			case strings.HasPrefix(line, "From:"):
				msg.From = strings.TrimSpace(strings.TrimPrefix(line, "From:"))
			case strings.HasPrefix(line, "Subject:"):
				msg.Subject = strings.TrimSpace(strings.TrimPrefix(line, "Subject:"))
			case line == "":
				body = true
			}
			continue
		}
		bodyLines = append(bodyLines, line)
	}
	msg.Body = strings.Join(bodyLines, "\n")
	return msg
}

func (p *Poller) trigger(ctx context.Context, msg *inboundMessage) {
	b, err := p.boards.OpenBoard(ctx, p.boardID, true)
	if err != nil {
		p.log.Error("mail: open board failed", "board_id", p.boardID, "error", err)
		return
	}

	startNodeID := ""
	b.RLock()
	for id, n := range b.Nodes {
		if n.Start && n.Name == "mail_event" {
			startNodeID = id
			break
		}
	}
	b.RUnlock()
	if startNodeID == "" {
		p.log.Error("mail: board has no mail_event start node", "board_id", p.boardID)
		return
	}

	payload := value.Map(map[string]value.Value{
		"from":    value.String(msg.From),
		"subject": value.String(msg.Subject),
		"body":    value.String(msg.Body),
	})

	result := p.scheduler.Run(ctx, b, startNodeID, payload, false, p.services)
	if result.Status == scheduler.StatusFailed {
		p.log.Error("mail: run failed", "board_id", p.boardID, "error", result.Err)
	}
}
