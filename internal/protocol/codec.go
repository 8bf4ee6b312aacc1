package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/trainbook/internal/common"
	"github.com/dmitrijs2005/trainbook/internal/models"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Wire format: every message is a google.protobuf.Struct with two fields,
// "kind" (string) and an optional "body" (any JSON-shaped value). On a byte
// stream each Struct is written varint size-delimited; on message-oriented
// transports one transport message holds one Struct.
const (
	fieldKind = "kind"
	fieldBody = "body"
)

// MaxFrameSize caps the encoded size of a single frame in either direction.
const MaxFrameSize = 4 << 20

// Encoder writes size-delimited frames to a stream.
type Encoder struct {
	w *bufio.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode writes m and flushes it. Stream failures wrap common.ErrTransport.
func (e *Encoder) Encode(m Message) error {
	st, err := toStruct(m)
	if err != nil {
		return err
	}
	if err := checkSize(proto.Size(st)); err != nil {
		return err
	}
	if _, err := protodelim.MarshalTo(e.w, st); err != nil {
		return fmt.Errorf("%w: write frame: %w", common.ErrTransport, err)
	}
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("%w: flush frame: %w", common.ErrTransport, err)
	}
	return nil
}

// Decoder reads size-delimited frames from a stream.
type Decoder struct {
	r *recordingReader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: &recordingReader{r: bufio.NewReader(r)}}
}

// Decode blocks until a whole frame has been read. A failure of the stream
// itself wraps common.ErrTransport; bytes that do not form a valid frame wrap
// common.ErrDecode.
func (d *Decoder) Decode() (Message, error) {
	d.r.err = nil

	st := &structpb.Struct{}
	opts := protodelim.UnmarshalOptions{MaxSize: MaxFrameSize}
	if err := opts.UnmarshalFrom(d.r, st); err != nil {
		var tooLarge *protodelim.SizeTooLargeError
		if errors.As(err, &tooLarge) {
			return Message{}, fmt.Errorf("%w: frame of %d bytes exceeds %d", common.ErrDecode, tooLarge.Size, tooLarge.MaxSize)
		}
		if d.r.err != nil {
			return Message{}, fmt.Errorf("%w: read frame: %w", common.ErrTransport, d.r.err)
		}
		return Message{}, fmt.Errorf("%w: %w", common.ErrDecode, err)
	}
	return fromStruct(st)
}

// MarshalFrame encodes m as a single undelimited frame.
func MarshalFrame(m Message) ([]byte, error) {
	st, err := toStruct(m)
	if err != nil {
		return nil, err
	}
	if err := checkSize(proto.Size(st)); err != nil {
		return nil, err
	}
	b, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDecode, err)
	}
	return b, nil
}

// UnmarshalFrame decodes a frame produced by MarshalFrame.
func UnmarshalFrame(b []byte) (Message, error) {
	if err := checkSize(len(b)); err != nil {
		return Message{}, err
	}
	st := &structpb.Struct{}
	if err := proto.Unmarshal(b, st); err != nil {
		return Message{}, fmt.Errorf("%w: %w", common.ErrDecode, err)
	}
	return fromStruct(st)
}

func checkSize(n int) error {
	if n > MaxFrameSize {
		return fmt.Errorf("%w: frame of %d bytes exceeds %d", common.ErrDecode, n, MaxFrameSize)
	}
	return nil
}

// recordingReader remembers the last error returned by the underlying
// reader, which is how Decoder tells stream failures from garbage.
type recordingReader struct {
	r   *bufio.Reader
	err error
}

func (r *recordingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil {
		r.err = err
	}
	return n, err
}

func (r *recordingReader) ReadByte() (byte, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		r.err = err
	}
	return b, err
}

func toStruct(m Message) (*structpb.Struct, error) {
	if m.Kind == "" {
		return nil, fmt.Errorf("%w: message without kind", common.ErrDecode)
	}

	st := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldKind: structpb.NewStringValue(string(m.Kind)),
	}}

	var body any
	switch m.Kind {
	case KindCredentials, KindNewUser, KindProfileUpdate, KindUser:
		if m.User == nil {
			return nil, fmt.Errorf("%w: %s without user", common.ErrDecode, m.Kind)
		}
		body = m.User
	case KindCommand:
		body = m.Command
	case KindAck:
		body = m.Ack
	case KindTrains:
		body = m.Trains
	case KindLogout:
		return st, nil
	default:
		return st, nil
	}

	v, err := toValue(body)
	if err != nil {
		return nil, err
	}
	st.Fields[fieldBody] = v
	return st, nil
}

func toValue(body any) (*structpb.Value, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal body: %w", common.ErrDecode, err)
	}
	v := &structpb.Value{}
	if err := protojson.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("%w: body to value: %w", common.ErrDecode, err)
	}
	return v, nil
}

func fromStruct(st *structpb.Struct) (Message, error) {
	kindValue, ok := st.GetFields()[fieldKind]
	if !ok {
		return Message{}, fmt.Errorf("%w: frame without kind", common.ErrDecode)
	}
	sv, ok := kindValue.GetKind().(*structpb.Value_StringValue)
	if !ok || sv.StringValue == "" {
		return Message{}, fmt.Errorf("%w: kind is not a string", common.ErrDecode)
	}

	m := Message{Kind: Kind(sv.StringValue)}
	body := st.GetFields()[fieldBody]

	switch m.Kind {
	case KindCredentials, KindNewUser, KindProfileUpdate, KindUser:
		u := &models.User{}
		if err := fromValue(body, u); err != nil {
			return Message{}, err
		}
		m.User = u
	case KindCommand:
		if err := fromValue(body, &m.Command); err != nil {
			return Message{}, err
		}
	case KindAck:
		if err := fromValue(body, &m.Ack); err != nil {
			return Message{}, err
		}
	case KindTrains:
		if err := fromValue(body, &m.Trains); err != nil {
			return Message{}, err
		}
		if m.Trains == nil {
			m.Trains = []models.Train{}
		}
	case KindLogout:
	default:
		// Unknown kinds are passed up untouched; the receiver decides to ignore them.
	}
	return m, nil
}

func fromValue(v *structpb.Value, dst any) error {
	if v == nil {
		return fmt.Errorf("%w: missing body", common.ErrDecode)
	}
	raw, err := protojson.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: value to json: %w", common.ErrDecode, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: unmarshal body: %w", common.ErrDecode, err)
	}
	return nil
}
