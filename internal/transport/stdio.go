// ABOUTME: Line-oriented stdio transport: one envelope per line, concurrent handling
// ABOUTME: Blank lines are keep-alives; shutdown drains in-flight requests

package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/jojopeligroso/MyCastle-sub007/internal/protocol"
)

// StdioServer reads newline-delimited envelopes from a reader and writes
// one response line per request. Requests are handled concurrently;
// writes are serialized so response lines never interleave.
type StdioServer struct {
	dispatcher *protocol.Dispatcher
	logger     *slog.Logger

	in  io.Reader
	out io.Writer

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// NewStdioServer creates a stdio transport over the given streams.
func NewStdioServer(d *protocol.Dispatcher, in io.Reader, out io.Writer, logger *slog.Logger) *StdioServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StdioServer{
		dispatcher: d,
		logger:     logger,
		in:         in,
		out:        out,
	}
}

// Run reads envelopes until the input closes or the context is cancelled.
// Cancellation stops accepting new lines; requests already in flight run
// to completion before Run returns.
func (s *StdioServer) Run(ctx context.Context) error {
	reader := bufio.NewReaderSize(s.in, 64*1024)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		default:
		}

		line, err := readLine(reader)
		if len(line) > 0 {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.handleLine(ctx, line)
			}()
		}
		if err != nil {
			s.wg.Wait()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// readLine returns the next input line with its delimiter stripped. Only
// the first MaxRequestSize+1 bytes of an overlong line are kept, enough
// for the dispatcher's size check to reject the request; the rest of the
// line is discarded so the loop survives to serve later requests.
func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			if len(line) > protocol.MaxRequestSize {
				return line[:protocol.MaxRequestSize+1], discardLine(r)
			}
			continue
		}
		return trimEOL(line), err
	}
}

// discardLine consumes input through the next newline.
func discardLine(r *bufio.Reader) error {
	for {
		_, err := r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return err
	}
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}

func (s *StdioServer) handleLine(ctx context.Context, line []byte) {
	resp := s.dispatcher.Dispatch(ctx, line)
	if resp == nil {
		// Blank keep-alive line.
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("encoding response", "error", err)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(append(data, '\n')); err != nil {
		s.logger.Error("writing response", "error", err)
	}
}
