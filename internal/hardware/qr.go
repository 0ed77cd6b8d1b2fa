// Package hardware holds the simulated smart features at the edge of the
// system: the QR decoder and the vehicle microcontroller link.
package hardware

import (
	"unicode/utf8"

	"github.com/example/pmv-rental/internal/errs"
	"github.com/example/pmv-rental/internal/ids"
)

// TextQRDecoder stands in for a real image decoder: the simulated QR payload
// is the vehicle identifier as UTF-8 text. Anything that is not valid text
// or not a well-formed identifier reads as a corrupted image.
type TextQRDecoder struct{}

func (TextQRDecoder) DecodeVehicleID(payload []byte) (ids.VehicleID, error) {
	if len(payload) == 0 || !utf8.Valid(payload) {
		return ids.VehicleID{}, errs.ErrCorruptedImage
	}
	vid, err := ids.ParseVehicleID(string(payload))
	if err != nil {
		return ids.VehicleID{}, errs.ErrCorruptedImage
	}
	return vid, nil
}
