// Package snapshot stores evaluation results in a compact binary form so
// later runs can be compared against them.
//
// The encoding is protobuf wire format with the following layout:
//
//	message Snapshot {
//	  uint32 version = 15;
//	  Metrics metrics = 1;
//	  repeated Image images = 2;
//	}
//	message Metrics {
//	  uint64 tp = 1; uint64 fp = 2; uint64 fn = 3;
//	  double precision = 4; double recall = 5; double f1 = 6;
//	  double map50 = 7; double map75 = 8;
//	  repeated Class classes = 9;
//	}
//	message Class {
//	  string name = 1; uint64 tp = 2; uint64 fp = 3; uint64 fn = 4;
//	  double precision = 5; double recall = 6; double f1 = 7;
//	  double ap50 = 8; double ap75 = 9;
//	}
//	message Image { string id = 1; repeated Result results = 2; }
//	message Result {
//	  uint32 origin = 1; uint64 index = 2;
//	  double x = 3; double y = 4; double width = 5; double height = 6;
//	  string class = 7; double confidence = 8; uint32 type = 9;
//	  double iou = 10; sint64 pair = 11; string pair_class = 12;
//	}
//
// Unknown fields are skipped on decode.
package snapshot

import (
	"errors"
	"fmt"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"

	deteval "github.com/jamesainslie/go-deteval"
	"github.com/jamesainslie/go-deteval/match"
	"github.com/jamesainslie/go-deteval/metrics"
)

// Version is the snapshot format version written by Encode.
const Version = 1

var (
	// ErrWireType indicates a known field was encoded with the wrong type.
	ErrWireType = errors.New("snapshot: unexpected wire type")

	// ErrVersion indicates a snapshot written by a newer format version.
	ErrVersion = errors.New("snapshot: unsupported version")
)

const (
	fieldVersion protowire.Number = 15
	fieldMetrics protowire.Number = 1
	fieldImages  protowire.Number = 2
)

// Encode serializes res.
func Encode(res *deteval.Result) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, Version)
	b = protowire.AppendTag(b, fieldMetrics, protowire.BytesType)
	b = protowire.AppendBytes(b, encodeMetrics(res.Metrics))
	for _, id := range res.ImageIDs {
		b = protowire.AppendTag(b, fieldImages, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeImage(id, res.PerImage[id]))
	}
	return b
}

// Decode parses a snapshot produced by Encode.
func Decode(b []byte) (*deteval.Result, error) {
	res := &deteval.Result{
		Metrics:  metrics.Metrics{PerClassMetrics: []metrics.ClassMetrics{}},
		ImageIDs: []string{},
		PerImage: map[string][]match.Result{},
	}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldVersion:
			var v uint64
			n, err := consumeVarint(typ, b, &v)
			if err == nil && v > Version {
				err = fmt.Errorf("%w: %d", ErrVersion, v)
			}
			return n, err
		case fieldMetrics:
			var msg []byte
			n, err := consumeBytes(typ, b, &msg)
			if err != nil {
				return n, err
			}
			m, err := decodeMetrics(msg)
			if err != nil {
				return n, fmt.Errorf("metrics: %w", err)
			}
			res.Metrics = m
			return n, nil
		case fieldImages:
			var msg []byte
			n, err := consumeBytes(typ, b, &msg)
			if err != nil {
				return n, err
			}
			id, results, err := decodeImage(msg)
			if err != nil {
				return n, fmt.Errorf("image %d: %w", len(res.ImageIDs), err)
			}
			res.ImageIDs = append(res.ImageIDs, id)
			res.PerImage[id] = results
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Save writes the snapshot of res to path.
func Save(path string, res *deteval.Result) error {
	if err := os.WriteFile(path, Encode(res), 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Open reads a snapshot from path.
func Open(path string) (*deteval.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	res, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

func encodeMetrics(m metrics.Metrics) []byte {
	var b []byte
	b = appendUint(b, 1, uint64(m.TruePositives))
	b = appendUint(b, 2, uint64(m.FalsePositives))
	b = appendUint(b, 3, uint64(m.FalseNegatives))
	b = appendDouble(b, 4, m.Precision)
	b = appendDouble(b, 5, m.Recall)
	b = appendDouble(b, 6, m.F1Score)
	b = appendDouble(b, 7, m.MAP50)
	b = appendDouble(b, 8, m.MAP75)
	for _, cm := range m.PerClassMetrics {
		b = protowire.AppendTag(b, 9, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeClass(cm))
	}
	return b
}

func decodeMetrics(b []byte) (metrics.Metrics, error) {
	m := metrics.Metrics{PerClassMetrics: []metrics.ClassMetrics{}}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeInt(typ, b, &m.TruePositives)
		case 2:
			return consumeInt(typ, b, &m.FalsePositives)
		case 3:
			return consumeInt(typ, b, &m.FalseNegatives)
		case 4:
			return consumeDouble(typ, b, &m.Precision)
		case 5:
			return consumeDouble(typ, b, &m.Recall)
		case 6:
			return consumeDouble(typ, b, &m.F1Score)
		case 7:
			return consumeDouble(typ, b, &m.MAP50)
		case 8:
			return consumeDouble(typ, b, &m.MAP75)
		case 9:
			var msg []byte
			n, err := consumeBytes(typ, b, &msg)
			if err != nil {
				return n, err
			}
			cm, err := decodeClass(msg)
			if err != nil {
				return n, err
			}
			m.PerClassMetrics = append(m.PerClassMetrics, cm)
			return n, nil
		}
		return 0, nil
	})
	return m, err
}

func encodeClass(cm metrics.ClassMetrics) []byte {
	var b []byte
	b = appendString(b, 1, cm.ClassName)
	b = appendUint(b, 2, uint64(cm.TP))
	b = appendUint(b, 3, uint64(cm.FP))
	b = appendUint(b, 4, uint64(cm.FN))
	b = appendDouble(b, 5, cm.Precision)
	b = appendDouble(b, 6, cm.Recall)
	b = appendDouble(b, 7, cm.F1)
	b = appendDouble(b, 8, cm.AP50)
	b = appendDouble(b, 9, cm.AP75)
	return b
}

func decodeClass(b []byte) (metrics.ClassMetrics, error) {
	var cm metrics.ClassMetrics
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &cm.ClassName)
		case 2:
			return consumeInt(typ, b, &cm.TP)
		case 3:
			return consumeInt(typ, b, &cm.FP)
		case 4:
			return consumeInt(typ, b, &cm.FN)
		case 5:
			return consumeDouble(typ, b, &cm.Precision)
		case 6:
			return consumeDouble(typ, b, &cm.Recall)
		case 7:
			return consumeDouble(typ, b, &cm.F1)
		case 8:
			return consumeDouble(typ, b, &cm.AP50)
		case 9:
			return consumeDouble(typ, b, &cm.AP75)
		}
		return 0, nil
	})
	return cm, err
}

func encodeImage(id string, results []match.Result) []byte {
	var b []byte
	b = appendString(b, 1, id)
	for _, r := range results {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeResult(r))
	}
	return b
}

func decodeImage(b []byte) (string, []match.Result, error) {
	var id string
	results := []match.Result{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &id)
		case 2:
			var msg []byte
			n, err := consumeBytes(typ, b, &msg)
			if err != nil {
				return n, err
			}
			r, err := decodeResult(msg)
			if err != nil {
				return n, err
			}
			results = append(results, r)
			return n, nil
		}
		return 0, nil
	})
	return id, results, err
}

func encodeResult(r match.Result) []byte {
	var b []byte
	b = appendUint(b, 1, uint64(r.Origin))
	b = appendUint(b, 2, uint64(r.Index))
	b = appendDouble(b, 3, r.Box.X)
	b = appendDouble(b, 4, r.Box.Y)
	b = appendDouble(b, 5, r.Box.Width)
	b = appendDouble(b, 6, r.Box.Height)
	b = appendString(b, 7, r.Class)
	b = appendDouble(b, 8, r.Confidence)
	b = appendUint(b, 9, uint64(r.Type))
	b = appendDouble(b, 10, r.IoU)
	b = protowire.AppendTag(b, 11, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(r.Pair)))
	b = appendString(b, 12, r.PairClass)
	return b
}

func decodeResult(b []byte) (match.Result, error) {
	r := match.Result{Pair: -1}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var v uint64
		switch num {
		case 1:
			n, err := consumeVarint(typ, b, &v)
			r.Origin = match.Origin(v)
			return n, err
		case 2:
			return consumeInt(typ, b, &r.Index)
		case 3:
			return consumeDouble(typ, b, &r.Box.X)
		case 4:
			return consumeDouble(typ, b, &r.Box.Y)
		case 5:
			return consumeDouble(typ, b, &r.Box.Width)
		case 6:
			return consumeDouble(typ, b, &r.Box.Height)
		case 7:
			return consumeString(typ, b, &r.Class)
		case 8:
			return consumeDouble(typ, b, &r.Confidence)
		case 9:
			n, err := consumeVarint(typ, b, &v)
			r.Type = match.Outcome(v)
			return n, err
		case 10:
			return consumeDouble(typ, b, &r.IoU)
		case 11:
			n, err := consumeVarint(typ, b, &v)
			r.Pair = int(protowire.DecodeZigZag(v))
			return n, err
		case 12:
			return consumeString(typ, b, &r.PairClass)
		}
		return 0, nil
	})
	return r, err
}

// walk calls fn for every field in b. fn returns how many bytes of the
// field value it consumed; 0 means the field is unknown and is skipped.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return protowire.ParseError(m)
			}
		}
		b = b[m:]
	}
	return nil
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func consumeVarint(typ protowire.Type, b []byte, dst *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, ErrWireType
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

func consumeInt(typ protowire.Type, b []byte, dst *int) (int, error) {
	var v uint64
	n, err := consumeVarint(typ, b, &v)
	*dst = int(v)
	return n, err
}

func consumeDouble(typ protowire.Type, b []byte, dst *float64) (int, error) {
	if typ != protowire.Fixed64Type {
		return 0, ErrWireType
	}
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = math.Float64frombits(v)
	return n, nil
}

func consumeBytes(typ protowire.Type, b []byte, dst *[]byte) (int, error) {
	if typ != protowire.BytesType {
		return 0, ErrWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	var v []byte
	n, err := consumeBytes(typ, b, &v)
	*dst = string(v)
	return n, err
}
