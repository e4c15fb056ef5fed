package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrFrameTooLarge is returned when an encoded frame does not fit the
// 4-byte length prefix.
var ErrFrameTooLarge = errors.New("frame too large")

// writeFrame sends one JPEG to the service: a 4-byte big-endian length
// followed by the image bytes.
func writeFrame(w io.Writer, jpeg []byte) error {
	if uint64(len(jpeg)) > math.MaxUint32 {
		return ErrFrameTooLarge
	}

	msg := make([]byte, 4+len(jpeg))
	binary.BigEndian.PutUint32(msg, uint32(len(jpeg)))
	copy(msg[4:], jpeg)

	_, err := w.Write(msg)
	return err
}

// reply is one JSON line from the service.
type reply struct {
	Hands []wireHand `json:"hands"`
	Error string     `json:"error,omitempty"`
}

type wireHand struct {
	Points     []wirePoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type wirePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// readHands reads one reply line and returns the hands scoring at least
// minScore. A reply carrying an error field is reported as an error.
func readHands(r *bufio.Reader, minScore float64) ([]HandLandmarks, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}

	var rep reply
	if err := json.Unmarshal(line, &rep); err != nil {
		return nil, fmt.Errorf("parse reply: %w", err)
	}
	if rep.Error != "" {
		return nil, fmt.Errorf("service: %s", rep.Error)
	}

	hands := make([]HandLandmarks, 0, len(rep.Hands))
	for _, h := range rep.Hands {
		if h.Score < minScore {
			continue
		}
		hands = append(hands, h.landmarks())
	}
	return hands, nil
}

// landmarks copies up to NumLandmarks points; missing points stay zero.
func (h wireHand) landmarks() HandLandmarks {
	out := HandLandmarks{Handedness: h.Handedness, Score: h.Score}
	for i, p := range h.Points {
		if i == NumLandmarks {
			break
		}
		out.Points[i] = Point3D(p)
	}
	return out
}
