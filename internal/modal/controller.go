// Package modal glues the embedded app's message channel to the workflow
// session: it reacts to the host's open/close commands and runs the one-shot
// product image exchange.
package modal

import (
	"log/slog"
	"net/url"
	"sync"

	"github.com/wearly/tryon-embed/internal/frame"
	"github.com/wearly/tryon-embed/internal/workflow"
)

// Params are the embed parameters serialized into the iframe URL by the
// bootstrapper.
type Params struct {
	ImageContainer string
}

// ParseParams extracts embed parameters from the iframe URL query.
func ParseParams(rawQuery string) Params {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Params{}
	}
	return Params{ImageContainer: values.Get("imageContainer")}
}

type Deps struct {
	Endpoint *frame.Endpoint
	Session  *workflow.Session
	Logger   *slog.Logger

	// AllowedOrigin is the only origin trusted for productImageData replies.
	// Anything else is ignored silently and the product image stays unset.
	AllowedOrigin string
	Params        Params
}

// Controller is the embedded-app side of the handshake. Its subscriptions
// live exactly as long as the controller; Close unregisters them.
type Controller struct {
	ep      *frame.Endpoint
	session *workflow.Session
	logger  *slog.Logger

	allowedOrigin  string
	imageContainer string

	mu          sync.Mutex
	open        bool
	requested   bool
	unsubscribe func()
}

func New(deps Deps) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		ep:             deps.Endpoint,
		session:        deps.Session,
		logger:         logger,
		allowedOrigin:  deps.AllowedOrigin,
		imageContainer: deps.Params.ImageContainer,
	}
}

// Start registers the message handlers.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unsubscribe != nil {
		return
	}

	c.unsubscribe = c.ep.OnMessage(func(env frame.Envelope) {
		switch msg := env.Message.(type) {
		case frame.OpenModal:
			c.handleOpen()
		case frame.ProductImageData:
			c.handleProductImage(env.Origin, msg.ImageSrc)
		}
	})
}

// IsOpen reports whether the host has opened the modal.
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Close tells the host to tear the iframe down and releases the
// subscriptions and the session's polling loop.
func (c *Controller) Close() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.open = false
	c.mu.Unlock()

	c.ep.Send(frame.CloseModal{}, frame.WildcardOrigin)
	if unsubscribe != nil {
		unsubscribe()
	}
	c.session.Close()
}

func (c *Controller) handleOpen() {
	c.mu.Lock()
	c.open = true
	request := !c.requested && c.imageContainer != ""
	if request {
		c.requested = true
	}
	container := c.imageContainer
	c.mu.Unlock()

	// Only one outstanding request per session; the exchange is correlated
	// by message type alone. No reply leaves the session without a product
	// image, which the workflow treats as "unavailable".
	if request {
		c.ep.Send(frame.GetProductImage{ContainerSelector: container}, frame.WildcardOrigin)
	}
}

func (c *Controller) handleProductImage(origin, imageSrc string) {
	if origin != c.allowedOrigin {
		c.logger.Warn("product image from unexpected origin ignored",
			"origin", origin,
		)
		return
	}
	c.session.SetProductImage(imageSrc)
}
