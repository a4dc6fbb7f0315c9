package main

import (
	"context"
	"encoding/json"
	"io"
	"net"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"ledger/internal/ledger"
	"ledger/internal/schema"
	"ledger/pkg/exception"
	"ledger/pkg/uds"
)

// Codes for requests that never reach the engine.
const (
	codeBadRequest    = "BadRequest"
	codeFrameTooLarge = "FrameTooLarge"
)

// response is one reply line. Exactly one of Notification or Code is set.
type response struct {
	Notification *schema.Notification `json:"notification,omitempty"`
	Code         string               `json:"code,omitempty"`
	Error        string               `json:"error,omitempty"`
}

type executor interface {
	Execute(ctx context.Context, req ledger.Request) (schema.Notification, error)
}

// connHandler serves newline-delimited JSON requests, one response per line.
type connHandler struct {
	engine  executor
	maxLine int
}

func (h *connHandler) serve(ctx context.Context, conn *net.UnixConn) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	if err := h.handle(ctx, conn); err != nil && ctx.Err() == nil {
		logs.Errorf("connection closed: %v", err)
	}
}

func (h *connHandler) handle(ctx context.Context, rw io.ReadWriter) error {
	reader := uds.NewLineReader(rw, h.maxLine)
	for {
		line, err := reader.ReadLine()
		if err != nil {
			if errors.Is(err, exception.ErrFrameTooLarge) {
				if err := h.reply(rw, response{Code: codeFrameTooLarge, Error: err.Error()}); err != nil {
					return err
				}
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if len(line) == 0 {
			continue
		}
		if err := h.reply(rw, h.execute(ctx, line)); err != nil {
			return err
		}
	}
}

func (h *connHandler) execute(ctx context.Context, line []byte) response {
	var req ledger.Request
	if err := json.Unmarshal(line, &req); err != nil {
		return response{Code: codeBadRequest, Error: err.Error()}
	}
	n, err := h.engine.Execute(ctx, req)
	if err != nil {
		return response{Code: exception.Code(err), Error: err.Error()}
	}
	return response{Notification: &n}
}

func (h *connHandler) reply(w io.Writer, resp response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return uds.WriteLine(w, data)
}
