package frame

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Wire-level message types shared by the host page and the embedded app.
const (
	typeOpenModal        = "openModal"
	typeCloseModal       = "closeModal"
	typeGetProductImage  = "getProductImage"
	typeProductImageData = "productImageData"
)

var ErrUnknownMessage = errors.New("unknown message shape")

// Message is the tagged union carried across the frame boundary. Decoding is
// strict: anything that is not one of the four known shapes is rejected at
// the trust boundary instead of being duck-typed.
type Message interface {
	messageType() string
}

// OpenModal tells the embedded app to show itself.
type OpenModal struct{}

// CloseModal tells the host to tear the iframe down.
type CloseModal struct{}

// GetProductImage asks the host to resolve the product image inside the
// given container.
type GetProductImage struct {
	ContainerSelector string
}

// ProductImageData is the host's reply carrying the resolved image source.
type ProductImageData struct {
	ImageSrc string
}

func (OpenModal) messageType() string        { return typeOpenModal }
func (CloseModal) messageType() string       { return typeCloseModal }
func (GetProductImage) messageType() string  { return typeGetProductImage }
func (ProductImageData) messageType() string { return typeProductImageData }

type wireMessage struct {
	Type              string `json:"type"`
	ContainerSelector string `json:"containerSelector,omitempty"`
	ImageSrc          string `json:"imageSrc,omitempty"`
}

// EncodeMessage serializes a message to its JSON wire form.
func EncodeMessage(msg Message) ([]byte, error) {
	w := wireMessage{Type: msg.messageType()}

	switch m := msg.(type) {
	case OpenModal, CloseModal:
	case GetProductImage:
		if m.ContainerSelector == "" {
			return nil, fmt.Errorf("getProductImage requires a container selector")
		}
		w.ContainerSelector = m.ContainerSelector
	case ProductImageData:
		if m.ImageSrc == "" {
			return nil, fmt.Errorf("productImageData requires an image source")
		}
		w.ImageSrc = m.ImageSrc
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}

	return json.Marshal(w)
}

// DecodeMessage parses raw bytes received from the other browsing context.
// Unrecognized types, missing required fields, and malformed JSON all fail.
func DecodeMessage(raw []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	switch w.Type {
	case typeOpenModal:
		return OpenModal{}, nil
	case typeCloseModal:
		return CloseModal{}, nil
	case typeGetProductImage:
		if w.ContainerSelector == "" {
			return nil, fmt.Errorf("%w: getProductImage without containerSelector", ErrUnknownMessage)
		}
		return GetProductImage{ContainerSelector: w.ContainerSelector}, nil
	case typeProductImageData:
		if w.ImageSrc == "" {
			return nil, fmt.Errorf("%w: productImageData without imageSrc", ErrUnknownMessage)
		}
		return ProductImageData{ImageSrc: w.ImageSrc}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, w.Type)
	}
}
