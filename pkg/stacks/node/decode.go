package node

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeBlock parses a /new_block body. Numbers are kept exact.
func DecodeBlock(data []byte) (*Block, error) {
	var b Block
	if err := decode(data, &b); err != nil {
		return nil, fmt.Errorf("decode block message: %w", err)
	}
	return &b, nil
}

// DecodeBurnBlock parses a /new_burn_block body.
func DecodeBurnBlock(data []byte) (*BurnBlock, error) {
	var b BurnBlock
	if err := decode(data, &b); err != nil {
		return nil, fmt.Errorf("decode burn block message: %w", err)
	}
	return &b, nil
}

// DecodeDropMempoolTx parses a /drop_mempool_tx body.
func DecodeDropMempoolTx(data []byte) (*DropMempoolTx, error) {
	var d DropMempoolTx
	if err := decode(data, &d); err != nil {
		return nil, fmt.Errorf("decode mempool drop message: %w", err)
	}
	return &d, nil
}

func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON document")
	}
	return nil
}
