package size

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Size
		wantErr bool
	}{
		{"", 0, false},
		{"512", 512, false},
		{"512 B", 512, false},
		{"4K", 4 * KiB, false},
		{"10GB", 10 * GiB, false},
		{"2 TB", 2 * TiB, false},
		{"garbage", 0, true},
		{"-5GB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []Size{0, 1, 512, 4 * KiB, 10 * GiB, 10*GiB + 512, 2 * TiB} {
		back, err := Parse(s.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", s.String(), err)
		}
		if back != s {
			t.Errorf("round trip of %d via %q = %d", s, s.String(), back)
		}
	}
}

func TestRounding(t *testing.T) {
	tests := []struct {
		s, align, down, up Size
	}{
		{10, 4, 8, 12},
		{12, 4, 12, 12},
		{10, 0, 10, 10},
		{1*GiB + 1, 1 * MiB, 1 * GiB, 1*GiB + 1*MiB},
	}

	for _, tt := range tests {
		if got := tt.s.RoundDown(tt.align); got != tt.down {
			t.Errorf("RoundDown(%d, %d) = %d, want %d", tt.s, tt.align, got, tt.down)
		}
		if got := tt.s.RoundUp(tt.align); got != tt.up {
			t.Errorf("RoundUp(%d, %d) = %d, want %d", tt.s, tt.align, got, tt.up)
		}
	}
}

func TestIsAligned(t *testing.T) {
	if !(8 * KiB).IsAligned(4 * KiB) {
		t.Error("8K should align to 4K")
	}
	if (8*KiB + 1).IsAligned(4 * KiB) {
		t.Error("8K+1 should not align to 4K")
	}
	if !Size(7).IsAligned(0) {
		t.Error("everything aligns to zero")
	}
}

func TestTextMarshalling(t *testing.T) {
	text, err := (10 * GiB).MarshalText()
	if err != nil {
		t.Fatal(err)
	}

	var back Size
	if err := back.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if back != 10*GiB {
		t.Errorf("round trip = %d, want %d", back, 10*GiB)
	}

	if err := back.UnmarshalText([]byte("junk?")); err == nil {
		t.Error("expected unmarshal error")
	}
}
