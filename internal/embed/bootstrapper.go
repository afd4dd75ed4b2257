// Package embed is the host-page side of the widget: it finds the trigger
// element, owns the iframe lifecycle, and answers the embedded app's product
// image requests.
//
// Browser surfaces are behind narrow interfaces so the integration logic is
// testable without a DOM; the served embed script is the browser rendition
// of the same behavior.
package embed

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/wearly/tryon-embed/internal/frame"
)

// Document resolves CSS selectors against the host page.
type Document interface {
	Query(selector string) (Element, bool)
}

// Element is a resolved host-page node.
type Element interface {
	// OnClick binds a click handler and returns its unbind func.
	OnClick(fn func()) func()
	// ImageSource returns the source of the first image inside the element.
	ImageSource() (string, bool)
}

// FrameHost creates embedded frames pointing at the given URL.
type FrameHost interface {
	CreateFrame(url string) (Frame, error)
}

// Frame is a live embedded frame. Endpoint returns the host's end of the
// message channel to the embedded app.
type Frame interface {
	Endpoint() *frame.Endpoint
	OnLoad(fn func())
	Remove()
}

const (
	defaultRetryBase    = 100 * time.Millisecond
	defaultRetryCeiling = 2 * time.Second
	defaultRetryLimit   = 10
	retryFactor         = 1.5
)

type Deps struct {
	Document Document
	Frames   FrameHost
	Logger   *slog.Logger

	// TriggerSelector locates the host element that opens the modal.
	TriggerSelector string
	// EmbedDomain is the embedded app's origin; all messaging is pinned to
	// it.
	EmbedDomain string
	// ImageContainer is the host selector holding the product image, relayed
	// to the embedded app via the iframe URL.
	ImageContainer string

	RetryBase    time.Duration
	RetryCeiling time.Duration
	RetryLimit   int
}

// Bootstrapper wires a host page to the embedded try-on app.
type Bootstrapper struct {
	doc    Document
	frames FrameHost
	logger *slog.Logger

	triggerSelector string
	embedDomain     string
	imageContainer  string

	retryBase    time.Duration
	retryCeiling time.Duration
	retryLimit   int
}

func New(deps Deps) *Bootstrapper {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retryBase := deps.RetryBase
	if retryBase <= 0 {
		retryBase = defaultRetryBase
	}

	retryCeiling := deps.RetryCeiling
	if retryCeiling <= 0 {
		retryCeiling = defaultRetryCeiling
	}

	retryLimit := deps.RetryLimit
	if retryLimit <= 0 {
		retryLimit = defaultRetryLimit
	}

	return &Bootstrapper{
		doc:             deps.Document,
		frames:          deps.Frames,
		logger:          logger,
		triggerSelector: deps.TriggerSelector,
		embedDomain:     deps.EmbedDomain,
		imageContainer:  deps.ImageContainer,
		retryBase:       retryBase,
		retryCeiling:    retryCeiling,
		retryLimit:      retryLimit,
	}
}

// Run locates the trigger element and binds the click handler, retrying with
// bounded exponential backoff for host pages that render the trigger late.
// Exhausting the retry budget is a silent give-up: the host page controls
// whether the trigger ever appears.
func (b *Bootstrapper) Run(ctx context.Context) {
	delay := b.retryBase

	for attempt := 0; ; attempt++ {
		if el, ok := b.doc.Query(b.triggerSelector); ok {
			el.OnClick(b.openModal)
			b.logger.Debug("trigger bound", "selector", b.triggerSelector)
			return
		}

		if attempt >= b.retryLimit {
			b.logger.Debug("trigger not found, giving up",
				"selector", b.triggerSelector,
				"attempts", attempt,
			)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * retryFactor)
		if delay > b.retryCeiling {
			delay = b.retryCeiling
		}
	}
}

// openModal creates the iframe and wires its message channel. Each open gets
// its own subscription, unregistered when the modal closes.
func (b *Bootstrapper) openModal() {
	fr, err := b.frames.CreateFrame(b.frameURL())
	if err != nil {
		b.logger.Error("create frame failed", "error", err)
		return
	}

	ep := fr.Endpoint()

	var unsubscribe func()
	unsubscribe = ep.Subscribe(b.embedDomain, func(env frame.Envelope) {
		switch msg := env.Message.(type) {
		case frame.CloseModal:
			fr.Remove()
			unsubscribe()
		case frame.GetProductImage:
			b.answerProductImage(ep, msg.ContainerSelector)
		}
	})

	fr.OnLoad(func() {
		ep.Send(frame.OpenModal{}, b.embedDomain)
	})
}

// answerProductImage resolves the product image and replies. Resolution
// failures are logged, never thrown, and produce no reply; the embedded app
// tolerates the silence.
func (b *Bootstrapper) answerProductImage(ep *frame.Endpoint, containerSelector string) {
	container, ok := b.doc.Query(containerSelector)
	if !ok {
		b.logger.Error("product image container not found", "selector", containerSelector)
		return
	}

	src, ok := container.ImageSource()
	if !ok {
		b.logger.Error("no image found in container", "selector", containerSelector)
		return
	}

	ep.Send(frame.ProductImageData{ImageSrc: src}, b.embedDomain)
}

func (b *Bootstrapper) frameURL() string {
	params := url.Values{}
	params.Set("imageContainer", b.imageContainer)
	return b.embedDomain + "/?" + params.Encode()
}
