package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/invopop/jsonschema"
)

// protocolDocument groups every message body so one schema covers the wire
type protocolDocument struct {
	Join      JoinMsg        `json:"join"`
	Command   string         `json:"command" jsonschema:"enum=upKeyDown,enum=upKeyUp,enum=downKeyDown,enum=downKeyUp,enum=leftKeyDown,enum=leftKeyUp,enum=rightKeyDown,enum=rightKeyUp,enum=shootDown"`
	Welcome   WelcomeMsg     `json:"welcome"`
	Explosion ExplosionEvent `json:"explosion"`
	Snapshot  GameState      `json:"snapshot"`
	Error     ErrorMsg       `json:"error"`
}

func buildProtocolSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(protocolDocument))
	schema.Title = "HexTank wire protocol"
	schema.Description = "Message bodies carried in the d field of websocket envelopes"
	return schema
}

// WriteProtocolSchema writes the indented JSON schema of the protocol
func WriteProtocolSchema(w io.Writer) error {
	data, err := json.MarshalIndent(buildProtocolSchema(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
