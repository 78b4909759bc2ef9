// Package placementv1 defines the placement.v1 wire contract.
//
// Messages travel as google.protobuf.Struct values so the service needs no
// generated code; the typed structs below are the Go view of each payload.
package placementv1

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Entity is one positioned entity on the wire.
type Entity struct {
	ID   string `json:"id"`
	Zone string `json:"zone"`
	Row  int    `json:"row"`
	Col  int    `json:"col"`
	Kind string `json:"kind"`
}

// Zone is one zone configuration on the wire.
type Zone struct {
	Name    string  `json:"name"`
	MaxRows int     `json:"max_rows"`
	MaxCols int     `json:"max_cols"`
	StartX  float64 `json:"start_x"`
	EndX    float64 `json:"end_x"`
	StartY  float64 `json:"start_y"`
	EndY    float64 `json:"end_y"`
}

// Move is one journal entry on the wire. MovedAt is RFC 3339 in UTC.
type Move struct {
	ID         string `json:"id"`
	EntityID   string `json:"entity_id"`
	Zone       string `json:"zone"`
	FromRow    int    `json:"from_row"`
	FromCol    int    `json:"from_col"`
	ToRow      int    `json:"to_row"`
	ToCol      int    `json:"to_col"`
	SwapWithID string `json:"swap_with_id,omitempty"`
	MovedAt    string `json:"moved_at"`
}

type ListEntitiesRequest struct {
	Zone string `json:"zone"`
}

type ListEntitiesResponse struct {
	Entities []Entity `json:"entities"`
}

type GetZoneRequest struct {
	Zone string `json:"zone"`
}

type GetZoneResponse struct {
	Zone Zone `json:"zone"`
}

// MoveEntityRequest relocates one entity. SwapWithID names the same-kind
// entity expected on the target cell when the move is a swap.
type MoveEntityRequest struct {
	EntityID   string `json:"entity_id"`
	Zone       string `json:"zone"`
	TargetRow  int    `json:"target_row"`
	TargetCol  int    `json:"target_col"`
	SwapWithID string `json:"swap_with_id,omitempty"`
}

// MoveEntityResponse carries the updated participants of an accepted move.
type MoveEntityResponse struct {
	Entities []Entity `json:"entities"`
}

type ListMovesRequest struct {
	Zone      string `json:"zone"`
	PageSize  int    `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
	// Filter is an AIP-160 expression over entity_id, swap_with_id,
	// from_row, from_col, to_row, to_col and moved_at.
	Filter string `json:"filter,omitempty"`
}

type ListMovesResponse struct {
	Moves         []Move `json:"moves"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

// ToStruct encodes a typed message as a protobuf Struct.
func ToStruct(message any) (*structpb.Struct, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return out, nil
}

// FromStruct decodes a protobuf Struct into a typed message.
func FromStruct(in *structpb.Struct, message any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(data, message); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
