package modal

import (
	"io"
	"log/slog"
	"testing"

	"github.com/wearly/tryon-embed/internal/frame"
	"github.com/wearly/tryon-embed/internal/workflow"
)

const (
	hostOrigin  = "https://shop.example"
	embedOrigin = "https://tryon.example"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newController(t *testing.T, app *frame.Endpoint) (*Controller, *workflow.Session) {
	t.Helper()
	session := workflow.NewSession(workflow.Deps{Logger: discardLogger()})
	t.Cleanup(session.Close)

	c := New(Deps{
		Endpoint:      app,
		Session:       session,
		Logger:        discardLogger(),
		AllowedOrigin: hostOrigin,
		Params:        ParseParams("imageContainer=%23product"),
	})
	c.Start()
	return c, session
}

func TestParseParams(t *testing.T) {
	p := ParseParams("imageContainer=%23product")
	if p.ImageContainer != "#product" {
		t.Fatalf("expected #product, got %s", p.ImageContainer)
	}

	if p := ParseParams("%zz"); p.ImageContainer != "" {
		t.Fatalf("expected empty params for bad query, got %+v", p)
	}
}

func TestOpenModalRequestsProductImage(t *testing.T) {
	host, app := frame.Pipe(hostOrigin, embedOrigin)
	c, _ := newController(t, app)

	var gotSelector string
	host.Subscribe(embedOrigin, func(env frame.Envelope) {
		if m, ok := env.Message.(frame.GetProductImage); ok {
			gotSelector = m.ContainerSelector
		}
	})

	host.Send(frame.OpenModal{}, embedOrigin)

	if !c.IsOpen() {
		t.Fatal("expected modal open after openModal")
	}
	if gotSelector != "#product" {
		t.Fatalf("expected product image request for #product, got %q", gotSelector)
	}
}

func TestOpenModalRequestsOnlyOnce(t *testing.T) {
	host, app := frame.Pipe(hostOrigin, embedOrigin)
	newController(t, app)

	requests := 0
	host.Subscribe(embedOrigin, func(env frame.Envelope) {
		if _, ok := env.Message.(frame.GetProductImage); ok {
			requests++
		}
	})

	host.Send(frame.OpenModal{}, embedOrigin)
	host.Send(frame.OpenModal{}, embedOrigin)

	if requests != 1 {
		t.Fatalf("expected a single outstanding request, got %d", requests)
	}
}

func TestProductImageDataSetsSessionImage(t *testing.T) {
	host, app := frame.Pipe(hostOrigin, embedOrigin)
	_, session := newController(t, app)

	host.Send(frame.ProductImageData{ImageSrc: "https://shop.example/dress.png"}, embedOrigin)

	if got := session.Snapshot().ProductImage; got != "https://shop.example/dress.png" {
		t.Fatalf("expected product image set, got %q", got)
	}
}

func TestProductImageDataWrongOriginIgnored(t *testing.T) {
	// The pipe's host side acts as an attacker origin.
	host, app := frame.Pipe("https://evil.example", embedOrigin)
	_, session := newController(t, app)

	host.Send(frame.ProductImageData{ImageSrc: "https://evil.example/override.png"}, embedOrigin)

	if got := session.Snapshot().ProductImage; got != "" {
		t.Fatalf("expected product image to stay unset, got %q", got)
	}
}

func TestMissingImageContainerNoRequest(t *testing.T) {
	host, app := frame.Pipe(hostOrigin, embedOrigin)
	session := workflow.NewSession(workflow.Deps{Logger: discardLogger()})
	t.Cleanup(session.Close)

	c := New(Deps{
		Endpoint:      app,
		Session:       session,
		Logger:        discardLogger(),
		AllowedOrigin: hostOrigin,
		Params:        ParseParams(""),
	})
	c.Start()

	requests := 0
	host.Subscribe(embedOrigin, func(env frame.Envelope) {
		if _, ok := env.Message.(frame.GetProductImage); ok {
			requests++
		}
	})

	host.Send(frame.OpenModal{}, embedOrigin)

	if !c.IsOpen() {
		t.Fatal("expected modal open even without image container")
	}
	if requests != 0 {
		t.Fatalf("expected no product image request without a container, got %d", requests)
	}
}

func TestCloseSendsCloseModalAndUnsubscribes(t *testing.T) {
	host, app := frame.Pipe(hostOrigin, embedOrigin)
	c, session := newController(t, app)

	closed := false
	host.Subscribe(embedOrigin, func(env frame.Envelope) {
		if _, ok := env.Message.(frame.CloseModal); ok {
			closed = true
		}
	})

	c.Close()

	if !closed {
		t.Fatal("expected closeModal sent to host")
	}
	if c.IsOpen() {
		t.Fatal("expected modal closed")
	}

	// Handlers are gone: later messages must not mutate the session.
	host.Send(frame.ProductImageData{ImageSrc: "https://late.example/p.png"}, embedOrigin)
	if got := session.Snapshot().ProductImage; got != "" {
		t.Fatalf("expected no mutation after close, got %q", got)
	}
}
