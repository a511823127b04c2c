// Package wire implements the game server's framing protocol: every message
// on the TCP channel is a 4-byte big-endian length prefix followed by exactly
// that many bytes of UTF-8 JSON.
//
// The JSON payload is always an [Envelope] — a type tag plus a free-form data
// member. Typed payload structs for each message type live alongside so both
// sides of the connection share one wire vocabulary.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxFrameBytes caps the declared length of an incoming frame. A corrupt or
// hostile length prefix must not make the reader allocate gigabytes.
const maxFrameBytes = 16 << 20

// Message type tags. These strings are the wire contract; clients in other
// languages match on them verbatim.
const (
	TypeLogin             = "login"
	TypeInitialWorldState = "initial_world_state"
	TypeWorldStateUpdate  = "world_state_update"
	TypePlayerMove        = "player_move"
	TypeChatMessage       = "chat_message"
	TypeError             = "error"
	TypeEquipItem         = "equip_item"
	TypeUnequipItem       = "unequip_item"
	TypeUseItem           = "use_item"
	TypeDiscardItem       = "discard_item"
	TypePlayerEnteredPOI  = "player_entered_poi"
)

// ErrFrameTooLarge is returned when a length prefix exceeds the frame cap.
var ErrFrameTooLarge = errors.New("wire: frame exceeds size limit")

// Envelope is the outer shape of every message.
type Envelope struct {
	// Type is one of the Type* constants.
	Type string `json:"type"`

	// Data is the type-specific payload, left raw so dispatchers can decode
	// it into the matching payload struct.
	Data json.RawMessage `json:"data"`
}

// Login is the client's first message after connecting.
type Login struct {
	CharacterID string `json:"character_id"`
}

// PlayerMove asks the server to move the player by one step.
type PlayerMove struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// EquipItem asks the server to equip an inventory item.
type EquipItem struct {
	ItemID string `json:"item_id"`
}

// UnequipItem asks the server to move an equipped item back to inventory.
type UnequipItem struct {
	Slot string `json:"slot"`
}

// UseItem asks the server to consume an inventory item.
type UseItem struct {
	ItemID string `json:"item_id"`
}

// DiscardItem asks the server to drop an inventory item.
type DiscardItem struct {
	ItemID string `json:"item_id"`
}

// PlayerEnteredPOI reports that the player stepped onto a point of interest.
type PlayerEnteredPOI struct {
	POIID string `json:"poi_id"`
}

// ChatMessage is relayed verbatim to every connected client.
type ChatMessage struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// Encode marshals payload into an [Envelope] of the given type.
func Encode(msgType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("wire: encode %s payload: %w", msgType, err)
	}
	return Envelope{Type: msgType, Data: raw}, nil
}

// WriteFrame writes one envelope to w as a length-prefixed JSON frame.
func WriteFrame(w io.Writer, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("wire: marshal envelope: %w", err)
	}
	if len(body) > maxFrameBytes {
		return ErrFrameTooLarge
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	// One Write per frame so concurrent writers interleave at frame
	// boundaries only when the caller serialises them.
	if _, err := w.Write(append(header[:], body...)); err != nil {
		return fmt.Errorf("wire: write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r and decodes its envelope.
//
// A clean close on the frame boundary returns [io.EOF]; a connection that
// dies mid-frame returns [io.ErrUnexpectedEOF]. A frame whose body is not a
// JSON envelope is a protocol error.
func ReadFrame(r io.Reader) (Envelope, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Envelope{}, io.EOF
		}
		return Envelope{}, fmt.Errorf("wire: read frame header: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > maxFrameBytes {
		return Envelope{}, ErrFrameTooLarge
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Envelope{}, fmt.Errorf("wire: read frame body: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("wire: decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, errors.New("wire: envelope missing type")
	}
	return env, nil
}

// DecodeData unmarshals an envelope's data member into out.
func DecodeData(env Envelope, out any) error {
	data := env.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("wire: decode %s data: %w", env.Type, err)
	}
	return nil
}
