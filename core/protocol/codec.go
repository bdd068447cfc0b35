package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"unicode/utf8"
)

// Marshal returns the JSON form of p without a trailing newline.
func Marshal(p Packet) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeTo(&buf, p); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// Encode writes p as a single newline-terminated line with one Write call.
func Encode(w io.Writer, p Packet) error {
	var buf bytes.Buffer
	if err := encodeTo(&buf, p); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// AppendLine appends the framed form of p to dst.
func AppendLine(dst *bytes.Buffer, p Packet) error {
	return encodeTo(dst, p)
}

func encodeTo(buf *bytes.Buffer, p Packet) error {
	var payload any
	switch v := p.(type) {
	case Join, Send, Message:
		payload = v
	case Error:
		payload = v.Text
	case *Join:
		payload = *v
	case *Send:
		payload = *v
	case *Message:
		payload = *v
	case *Error:
		payload = v.Text
	default:
		return fmt.Errorf("%w: %T", ErrUnknownPacket, p)
	}

	enc := json.NewEncoder(buf)
	// Group names and bodies are opaque; keep them byte-equal on the wire.
	enc.SetEscapeHTML(false)
	return enc.Encode(map[string]any{p.Tag(): payload})
}

// UnmarshalClient decodes one line into a ClientPacket.
func UnmarshalClient(line []byte) (ClientPacket, error) {
	tag, raw, err := splitTag(line)
	if err != nil {
		return nil, err
	}

	switch tag {
	case TagJoin:
		f, err := decodeFields(raw, "group")
		if err != nil {
			return nil, fmt.Errorf("%w: Join: %w", ErrDecode, err)
		}
		return Join{Group: f["group"]}, nil
	case TagSend:
		f, err := decodeFields(raw, "group", "message")
		if err != nil {
			return nil, fmt.Errorf("%w: Send: %w", ErrDecode, err)
		}
		return Send{Group: f["group"], Message: f["message"]}, nil
	default:
		return nil, fmt.Errorf("%w: unknown variant %q", ErrDecode, tag)
	}
}

// UnmarshalServer decodes one line into a ServerPacket.
func UnmarshalServer(line []byte) (ServerPacket, error) {
	tag, raw, err := splitTag(line)
	if err != nil {
		return nil, err
	}

	switch tag {
	case TagMessage:
		f, err := decodeFields(raw, "group", "message")
		if err != nil {
			return nil, fmt.Errorf("%w: Message: %w", ErrDecode, err)
		}
		return Message{Group: f["group"], Message: f["message"]}, nil
	case TagError:
		text, err := decodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: Error: %w", ErrDecode, err)
		}
		return Error{Text: text}, nil
	default:
		return nil, fmt.Errorf("%w: unknown variant %q", ErrDecode, tag)
	}
}

// splitTag returns the single key of the top-level object and its raw value.
// Lines must be valid UTF-8; encoding/json would otherwise substitute U+FFFD.
func splitTag(line []byte) (string, json.RawMessage, error) {
	if !utf8.Valid(line) {
		return "", nil, fmt.Errorf("%w: line is not valid UTF-8", ErrDecode)
	}
	obj, err := decodeObject(line)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if len(obj) != 1 {
		return "", nil, fmt.Errorf("%w: expected exactly one variant, got %d", ErrDecode, len(obj))
	}
	for tag, raw := range obj {
		return tag, raw, nil
	}
	panic("unreachable")
}

// decodeFields reads a payload object whose keys are exactly names, matched
// case-sensitively, with a string value each.
func decodeFields(raw json.RawMessage, names ...string) (map[string]string, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(names))
	for key, val := range obj {
		if !slices.Contains(names, key) {
			return nil, fmt.Errorf("unknown field %q", key)
		}
		s, err := decodeString(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		out[key] = s
	}
	for _, name := range names {
		if _, ok := out[name]; !ok {
			return nil, fmt.Errorf("missing field %q", name)
		}
	}
	return out, nil
}

// decodeObject reads one JSON object, rejecting duplicate keys and
// trailing data.
func decodeObject(data []byte) (obj map[string]json.RawMessage, err error) {
	// A truncated line must not read as a clean end of stream.
	defer func() {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
	}()

	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	obj = make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		if _, dup := obj[key]; dup {
			return nil, fmt.Errorf("duplicate key %q", key)
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, err
		}
		obj[key] = val
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after object")
	}
	return obj, nil
}

// decodeString accepts only a JSON string; null and other types are errors.
func decodeString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimLeft(raw, " \t\r\n")
	if len(raw) == 0 || raw[0] != '"' {
		return "", errors.New("expected a string")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}
