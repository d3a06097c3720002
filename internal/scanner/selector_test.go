package scanner

import (
	"testing"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/types"
)

func code(symbology string, raw []byte) types.DetectedCode {
	return types.NewDetectedCode(symbology, raw, types.Polygon{{0, 0}, {10, 0}, {10, 10}, {0, 10}})
}

func TestSelect(t *testing.T) {
	undecodable := code("QRCODE", []byte{0xff, 0xfe})
	empty := code("QRCODE", []byte("   "))

	tests := []struct {
		name      string
		codes     []types.DetectedCode
		wantOK    bool
		wantText  string
		wantIndex int
	}{
		{
			name:   "No codes",
			codes:  nil,
			wantOK: false,
		},
		{
			name:      "Single code",
			codes:     []types.DetectedCode{code("EAN_13", []byte("12345"))},
			wantOK:    true,
			wantText:  "12345",
			wantIndex: 0,
		},
		{
			name:      "First decodable wins over later ones",
			codes:     []types.DetectedCode{code("EAN_13", []byte("111")), code("QRCODE", []byte("222"))},
			wantOK:    true,
			wantText:  "111",
			wantIndex: 0,
		},
		{
			name:      "Undecodable and empty codes are skipped",
			codes:     []types.DetectedCode{undecodable, empty, code("CODE_128", []byte(" 333 ")), code("QRCODE", []byte("444"))},
			wantOK:    true,
			wantText:  "333",
			wantIndex: 2,
		},
		{
			name:   "Only unusable codes",
			codes:  []types.DetectedCode{undecodable, empty},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, ok := Select(tt.codes)
			if ok != tt.wantOK {
				t.Fatalf("Select() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if sel.Payload != tt.wantText {
				t.Errorf("Payload = %q, want %q", sel.Payload, tt.wantText)
			}
			if sel.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", sel.Index, tt.wantIndex)
			}
		})
	}
}
