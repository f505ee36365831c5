package replay

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// 磁带二进制封装（protowire 字段编号）：
//
//	tape:  1=tape_version(varint) 2=table_id(bytes) 3=hero_chair(varint) 4=event(bytes, repeated)
//	event: 1=seq(varint) 2=type(bytes) 3=payload_json(bytes)
const (
	tapeFieldVersion   = 1
	tapeFieldTableID   = 2
	tapeFieldHeroChair = 3
	tapeFieldEvent     = 4

	eventFieldSeq     = 1
	eventFieldType    = 2
	eventFieldPayload = 3
)

// MarshalTapeBinary 把磁带编码成紧凑二进制，事件 payload 仍是 JSON。
func MarshalTapeBinary(tape *ReplayTape) ([]byte, error) {
	if tape == nil {
		return nil, fmt.Errorf("nil tape")
	}
	var out []byte
	out = protowire.AppendTag(out, tapeFieldVersion, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(tape.TapeVersion))
	out = protowire.AppendTag(out, tapeFieldTableID, protowire.BytesType)
	out = protowire.AppendString(out, tape.TableID)
	out = protowire.AppendTag(out, tapeFieldHeroChair, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(tape.HeroChair))

	for i := range tape.Events {
		frame, err := marshalEventFrame(&tape.Events[i])
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		out = protowire.AppendTag(out, tapeFieldEvent, protowire.BytesType)
		out = protowire.AppendBytes(out, frame)
	}
	return out, nil
}

func marshalEventFrame(ev *ReplayEvent) ([]byte, error) {
	// payload JSON 里不重复 seq/type，解码时从帧字段恢复
	payload := *ev
	payload.Seq = 0
	payload.Type = ""
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var out []byte
	out = protowire.AppendTag(out, eventFieldSeq, protowire.VarintType)
	out = protowire.AppendVarint(out, ev.Seq)
	out = protowire.AppendTag(out, eventFieldType, protowire.BytesType)
	out = protowire.AppendString(out, ev.Type)
	out = protowire.AppendTag(out, eventFieldPayload, protowire.BytesType)
	out = protowire.AppendBytes(out, body)
	return out, nil
}

// UnmarshalTapeBinary 解析 MarshalTapeBinary 的输出，未知字段跳过。
func UnmarshalTapeBinary(data []byte) (*ReplayTape, error) {
	tape := &ReplayTape{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == tapeFieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("bad version: %w", protowire.ParseError(n))
			}
			tape.TapeVersion = int(v)
			data = data[n:]
		case num == tapeFieldTableID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("bad table id: %w", protowire.ParseError(n))
			}
			tape.TableID = v
			data = data[n:]
		case num == tapeFieldHeroChair && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("bad hero chair: %w", protowire.ParseError(n))
			}
			tape.HeroChair = uint16(v)
			data = data[n:]
		case num == tapeFieldEvent && typ == protowire.BytesType:
			frame, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("bad event frame: %w", protowire.ParseError(n))
			}
			data = data[n:]
			ev, err := unmarshalEventFrame(frame)
			if err != nil {
				return nil, fmt.Errorf("event %d: %w", len(tape.Events), err)
			}
			tape.Events = append(tape.Events, ev)
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return tape, nil
}

func unmarshalEventFrame(frame []byte) (ReplayEvent, error) {
	var ev ReplayEvent
	var seq uint64
	var typeName string
	for len(frame) > 0 {
		num, typ, n := protowire.ConsumeTag(frame)
		if n < 0 {
			return ev, fmt.Errorf("bad tag: %w", protowire.ParseError(n))
		}
		frame = frame[n:]

		switch {
		case num == eventFieldSeq && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(frame)
			if n < 0 {
				return ev, fmt.Errorf("bad seq: %w", protowire.ParseError(n))
			}
			seq = v
			frame = frame[n:]
		case num == eventFieldType && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(frame)
			if n < 0 {
				return ev, fmt.Errorf("bad type: %w", protowire.ParseError(n))
			}
			typeName = v
			frame = frame[n:]
		case num == eventFieldPayload && typ == protowire.BytesType:
			body, n := protowire.ConsumeBytes(frame)
			if n < 0 {
				return ev, fmt.Errorf("bad payload: %w", protowire.ParseError(n))
			}
			if err := json.Unmarshal(body, &ev); err != nil {
				return ev, fmt.Errorf("payload json: %w", err)
			}
			frame = frame[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, frame)
			if n < 0 {
				return ev, fmt.Errorf("bad field %d: %w", num, protowire.ParseError(n))
			}
			frame = frame[n:]
		}
	}
	ev.Seq = seq
	ev.Type = typeName
	return ev, nil
}
