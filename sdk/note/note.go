// Package note translates raw MIDI events into notes and encodes them as websocket frames.
package note

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/leandrodaf/notebridge/sdk/contracts"
)

var (
	// ErrDecodingFault is returned for events the device layer should never produce.
	ErrDecodingFault = errors.New("decoding fault")
	// ErrEncodingFault is returned when a note cannot be serialized.
	ErrEncodingFault = errors.New("encoding fault")
	// ErrUnknownKey is returned when parsing a key name that is not a pitch class.
	ErrUnknownKey = errors.New("unknown key")
)

// MaxData1 is the highest valid MIDI data byte.
const MaxData1 = 127

// Key is one of the twelve pitch classes.
type Key uint8

const (
	C Key = iota
	Cs
	D
	Ds
	E
	F
	Fs
	G
	Gs
	A
	As
	B
)

// PitchClasses is the number of Key values.
const PitchClasses = 12

var keyNames = [PitchClasses]string{"C", "Cs", "D", "Ds", "E", "F", "Fs", "G", "Gs", "A", "As", "B"}

// KeyFromPitchClass maps 0..11 onto C..B.
func KeyFromPitchClass(pc uint8) (Key, error) {
	if pc >= PitchClasses {
		return 0, fmt.Errorf("%w: pitch class %d", ErrDecodingFault, pc)
	}
	return Key(pc), nil
}

func (k Key) String() string {
	if k >= PitchClasses {
		return fmt.Sprintf("Key(%d)", uint8(k))
	}
	return keyNames[k]
}

// MarshalText encodes the key by name, e.g. "Cs".
func (k Key) MarshalText() ([]byte, error) {
	if k >= PitchClasses {
		return nil, fmt.Errorf("%w: key %d", ErrEncodingFault, uint8(k))
	}
	return []byte(keyNames[k]), nil
}

// UnmarshalText parses a key name produced by MarshalText.
func (k *Key) UnmarshalText(text []byte) error {
	for i, name := range keyNames {
		if name == string(text) {
			*k = Key(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownKey, text)
}

// Note is a single key press or release.
type Note struct {
	Octave    uint8  `json:"octave"`
	Key       Key    `json:"key"`
	Pressed   bool   `json:"pressed"`
	Timestamp uint32 `json:"timestamp"`
}

// Translate derives the note for a raw event. Only a status byte of exactly 144 counts as pressed.
func Translate(ev contracts.RawEvent) (Note, error) {
	if ev.Data1 > MaxData1 {
		return Note{}, fmt.Errorf("%w: data1 %d from device %d", ErrDecodingFault, ev.Data1, ev.DeviceID)
	}
	key, err := KeyFromPitchClass(ev.Data1 % PitchClasses)
	if err != nil {
		return Note{}, err
	}
	return Note{
		Octave:    ev.Data1 / PitchClasses,
		Key:       key,
		Pressed:   ev.Status == byte(contracts.NoteOn),
		Timestamp: ev.Timestamp,
	}, nil
}

// Encode serializes a note into one text frame payload.
func Encode(n Note) ([]byte, error) {
	b, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingFault, err)
	}
	return b, nil
}

// Decode parses a frame payload produced by Encode.
func Decode(b []byte) (Note, error) {
	var n Note
	if err := json.Unmarshal(b, &n); err != nil {
		return Note{}, err
	}
	return n, nil
}
