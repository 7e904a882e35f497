package qrcode

import (
	"fmt"

	qr "github.com/skip2/go-qrcode"
)

const defaultSize = 256

// TicketPayload builds the string encoded into a ticket's QR code. The
// scanner posts the ticket id back to the confirm endpoint.
func TicketPayload(ticketID string) string {
	return "ticketflow://tickets/" + ticketID
}

// Render encodes a payload as a PNG image. Size is the pixel width of the
// square image; zero or negative falls back to the default.
func Render(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = defaultSize
	}

	png, err := qr.Encode(payload, qr.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}

	return png, nil
}
