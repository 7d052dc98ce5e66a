package chain

import "testing"

func TestIsAddress(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"0x52908400098527886e0f7030069857d2e4169ee7", true},
		{"0x52908400098527886E0F7030069857D2E4169EE7", true},
		{"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", true},
		{"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359", true},
		{"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD", false}, // bad checksum
		{"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", true},
		{"52908400098527886e0f7030069857d2e4169ee7", false},
		{"0x123", false},
		{"", false},
		{"0x52908400098527886e0f7030069857d2e4169eg7", false},
	}
	for _, tc := range cases {
		if got := IsAddress(tc.in); got != tc.want {
			t.Errorf("IsAddress(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestChecksumAddress(t *testing.T) {
	// Test vectors from the EIP-55 reference set.
	cases := map[string]string{
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed": "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359": "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbf03b407c01e7cd3cbea99509d93f8dddc8c6fb": "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xd1220a0cf47c7b9be7a2e6ba89f429762e7b9adb": "0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for in, want := range cases {
		if got := ChecksumAddress(in); got != want {
			t.Errorf("ChecksumAddress(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestChecksumAddressRoundTrip(t *testing.T) {
	in := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	if got := ChecksumAddress(in); got != in {
		t.Errorf("checksumming a checksummed address changed it: %q", got)
	}
}
