package message

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
	"pgregory.net/rapid"
)

var (
	nameGen    = rapid.StringMatching(`[A-Za-z0-9 ._-]{0,32}`)
	longGen    = rapid.StringMatching(`[A-Za-z0-9 ._/-]{0,64}`)
	floatGen   = rapid.Float32Range(-1e6, 1e6)
	spanGen    = rapid.Uint8Range(1, 255)
	versionGen = rapid.Custom(func(t *rapid.T) Version {
		return Version{rapid.Uint8().Draw(t, "major"), rapid.Uint8().Draw(t, "minor"), rapid.Uint8().Draw(t, "patch")}
	})
	colorGen = rapid.Custom(func(t *rapid.T) Color {
		return Color{rapid.Uint8().Draw(t, "r"), rapid.Uint8().Draw(t, "g"), rapid.Uint8().Draw(t, "b")}
	})
	ipGen = rapid.Custom(func(t *rapid.T) (ip IPv4) {
		copy(ip[:], rapid.SliceOfN(rapid.Byte(), 4, 4).Draw(t, "ip"))
		return ip
	})
	headerGen = rapid.Custom(func(t *rapid.T) Header {
		id, _ := uuid.FromBytes(rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(t, "uuid"))
		return Header{From: id}
	})
)

func messageGen() *rapid.Generator[Message] {
	return rapid.OneOf(
		rapid.Custom(func(t *rapid.T) Message {
			return &ConnectionRequest{
				Header: headerGen.Draw(t, "h"), Version: versionGen.Draw(t, "v"), Force: rapid.Bool().Draw(t, "force"),
				Address: ipGen.Draw(t, "ip"), Hostname: nameGen.Draw(t, "host"),
			}
		}),
		rapid.Custom(func(t *rapid.T) Message {
			return &ConnectionResponse{
				Header: headerGen.Draw(t, "h"), Version: versionGen.Draw(t, "v"), Accepted: rapid.Bool().Draw(t, "a"),
				VersionMismatch: rapid.Bool().Draw(t, "vm"), InUse: rapid.Bool().Draw(t, "iu"), Hostname: nameGen.Draw(t, "host"),
			}
		}),
		rapid.Custom(func(t *rapid.T) Message {
			return &VersionParityResponse{
				Header: headerGen.Draw(t, "h"), Version: versionGen.Draw(t, "v"),
				Accepted: rapid.Bool().Draw(t, "a"), Reason: longGen.Draw(t, "reason"),
			}
		}),
		rapid.Custom(func(t *rapid.T) Message {
			return &PageSetup{
				Header: headerGen.Draw(t, "h"), ID: rapid.Uint8().Draw(t, "id"),
				Background: colorGen.Draw(t, "bg"), TitleColor: colorGen.Draw(t, "tc"), SubtitleColor: colorGen.Draw(t, "sc"),
				Rows: spanGen.Draw(t, "rows"), Columns: spanGen.Draw(t, "cols"), NextID: rapid.Uint8().Draw(t, "next"),
				Transition: Transition(rapid.Uint8().Draw(t, "tr")), TransitionTimeMs: rapid.Uint32().Draw(t, "tt"),
				DurationMs: rapid.Uint32().Draw(t, "dur"), Title: nameGen.Draw(t, "title"), TitleEnabled: rapid.Bool().Draw(t, "te"),
				TitleAlignment: Alignment(rapid.Uint8Range(0, 2).Draw(t, "ta")), Subtitle: nameGen.Draw(t, "sub"),
				SubtitleEnabled: rapid.Bool().Draw(t, "se"), SubtitleAlignment: Alignment(rapid.Uint8Range(0, 2).Draw(t, "sa")),
			}
		}),
		rapid.Custom(func(t *rapid.T) Message {
			skin := Skin(rapid.Uint8Range(0, uint8(skinCount)-1).Draw(t, "skin"))
			var colors ElementColors
			for e := range colors {
				colors[e] = colorGen.Draw(t, "color")
			}
			return &SensorSetup{
				Header: headerGen.Draw(t, "h"), ID: rapid.Uint8().Draw(t, "id"), PageID: rapid.Uint8().Draw(t, "page"),
				Row: rapid.Uint8().Draw(t, "row"), Column: rapid.Uint8().Draw(t, "col"), Kind: SensorKind(rapid.Uint8().Draw(t, "kind")),
				Skin: skin, Max: floatGen.Draw(t, "max"), Threshold: floatGen.Draw(t, "thr"),
				AverageEnabled: rapid.Bool().Draw(t, "avg"), AveragingPeriod: rapid.Uint32().Draw(t, "period"),
				RowSpan: spanGen.Draw(t, "rs"), ColumnSpan: spanGen.Draw(t, "cs"), InitialValue: floatGen.Draw(t, "init"),
				Title: nameGen.Draw(t, "title"), Colors: colors.Masked(skin),
			}
		}),
		rapid.Custom(func(t *rapid.T) Message {
			return &SensorTransform{
				Header: headerGen.Draw(t, "h"), ID: rapid.Uint8().Draw(t, "id"), PageID: rapid.Uint8().Draw(t, "page"),
				Row: rapid.Uint8().Draw(t, "row"), Column: rapid.Uint8().Draw(t, "col"),
				RowSpan: spanGen.Draw(t, "rs"), ColumnSpan: spanGen.Draw(t, "cs"),
			}
		}),
		rapid.Custom(func(t *rapid.T) Message {
			return &SensorData{Header: headerGen.Draw(t, "h"), ID: rapid.Uint8().Draw(t, "id"), Value: floatGen.Draw(t, "v")}
		}),
		rapid.Custom(func(t *rapid.T) Message {
			return &BroadcastReply{
				Header: headerGen.Draw(t, "h"), SystemID: rapid.Uint64().Draw(t, "sys"), Version: versionGen.Draw(t, "v"),
				MAC: [6]byte(rapid.SliceOfN(rapid.Byte(), 6, 6).Draw(t, "mac")), Address: ipGen.Draw(t, "ip"),
				Hostname: nameGen.Draw(t, "host"),
			}
		}),
		rapid.Custom(func(t *rapid.T) Message {
			return &FileTransfer{
				Header: headerGen.Draw(t, "h"), Size: rapid.Uint32().Draw(t, "size"),
				Kind: FileKind(rapid.Uint8().Draw(t, "kind")), Name: longGen.Draw(t, "name"),
			}
		}),
		rapid.Custom(func(t *rapid.T) Message {
			return &Confirmation{Header: headerGen.Draw(t, "h"), OK: rapid.Bool().Draw(t, "ok")}
		}),
	)
}

func TestRoundTrip_Property(t *testing.T) {
	gen := messageGen()
	rapid.Check(t, func(t *rapid.T) {
		m := gen.Draw(t, "msg")

		got, err := Decode(Encode(m))
		if err != nil {
			t.Fatalf("decode %s: %v", m.Type(), err)
		}
		if !equalMessages(m, got) {
			t.Fatalf("round trip mismatch:\n want %#v\n got  %#v", m, got)
		}

		got, err = DecodeSerial(EncodeSerial(m))
		if err != nil {
			t.Fatalf("serial decode %s: %v", m.Type(), err)
		}
		if !equalMessages(m, got) {
			t.Fatalf("serial round trip mismatch:\n want %#v\n got  %#v", m, got)
		}
	})
}

func TestChecksum_BitFlipProperty(t *testing.T) {
	gen := messageGen()
	rapid.Check(t, func(t *rapid.T) {
		frame := EncodeSerial(gen.Draw(t, "msg"))
		i := rapid.IntRange(0, SerialFrameSize-1).Draw(t, "byte")
		bit := rapid.IntRange(0, 7).Draw(t, "bit")
		frame[i] ^= 1 << bit

		if _, err := DecodeSerial(frame); err == nil {
			t.Fatalf("bit %d of byte %d flipped without detection", bit, i)
		}
	})
}

func equalMessages(a, b Message) bool {
	return reflect.DeepEqual(a, b)
}
