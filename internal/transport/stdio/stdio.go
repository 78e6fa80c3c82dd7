// Package stdio implements the line-delimited stdio transport for promptchain.
package stdio

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brbranch/promptchain/internal/logger"
)

// MaxBufferSize は1行（1リクエスト）の最大サイズ（1MB）
const MaxBufferSize = 1024 * 1024

// Handler はJSON-RPCリクエストを処理するインターフェース
// nilを返したリクエスト（通知）には何も書かない
type Handler interface {
	Handle(ctx context.Context, requestBytes []byte) []byte
}

// Server は標準入出力で1行1メッセージのJSON-RPCを処理する
type Server struct {
	handler Handler
	in      io.Reader
	out     io.Writer
}

type Option func(*Server)

// WithIO は入出力を差し替える
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *Server) {
		s.in, s.out = in, out
	}
}

func New(handler Handler, opts ...Option) *Server {
	s := &Server{handler: handler, in: os.Stdin, out: os.Stdout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type line struct {
	text string
	err  error
}

// Run はEOFまたはcontextキャンセルまでリクエストを処理する
// 読み取りは別goroutineで行い、ブロック中の読み取りでもキャンセルに反応する
func (s *Server) Run(ctx context.Context) error {
	lines := make(chan line)
	go s.readLines(ctx, lines)

	w := bufio.NewWriter(s.out)
	for {
		var l line
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok = <-lines:
		}
		if !ok {
			return ctx.Err()
		}
		if l.err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return l.err
		}
		if strings.TrimSpace(l.text) == "" {
			continue
		}

		start := time.Now()
		response := s.handler.Handle(ctx, []byte(l.text))
		logger.Zlog.Debug("stdio request handled",
			zap.Int("bytes", len(l.text)),
			zap.Bool("notification", response == nil),
			zap.Duration("elapsed", time.Since(start)))
		if response == nil {
			continue
		}

		if err := writeLine(w, response); err != nil {
			logger.Zlog.Error("failed to write response", zap.Error(err))
			return err
		}
	}
}

func writeLine(w *bufio.Writer, b []byte) error {
	if _, err := w.Write(b); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}

// readLines は入力を1行ずつchに送り、EOFでchを閉じる
// 読み取りエラーは1件送ってから閉じる
func (s *Server) readLines(ctx context.Context, ch chan<- line) {
	defer close(ch)

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 64*1024), MaxBufferSize)

	send := func(l line) bool {
		select {
		case ch <- l:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for scanner.Scan() {
		if !send(line{text: scanner.Text()}) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		send(line{err: err})
	}
}
