package cnpj_test

import (
	"testing"

	"github.com/boddenberg/zillo-assist-go/internal/cnpj"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"":                   "",
		"11.222.333/0001-81": "11222333000181",
		"  abc 12-3 ":        "123",
		"sem digitos":        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, cnpj.Normalize(in), "input %q", in)
	}
}

func TestValidate_KnownGood(t *testing.T) {
	assert.True(t, cnpj.Validate("11222333000181"))
	assert.True(t, cnpj.Validate("11.222.333/0001-81"))
	assert.True(t, cnpj.Validate("11444777000161"))
}

func TestValidate_WrongLength(t *testing.T) {
	assert.False(t, cnpj.Validate(""))
	assert.False(t, cnpj.Validate("123"))
	assert.False(t, cnpj.Validate("112223330001812"))
}

func TestValidate_RepeatedDigits(t *testing.T) {
	for d := '0'; d <= '9'; d++ {
		run := ""
		for i := 0; i < cnpj.Length; i++ {
			run += string(d)
		}
		assert.False(t, cnpj.Validate(run), "run %s", run)
	}
}

func TestValidate_FlippedCheckDigit(t *testing.T) {
	assert.False(t, cnpj.Validate("11222333000182"))
	assert.False(t, cnpj.Validate("11222333000191"))
}

func TestFormat_Progressive(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"1", "1"},
		{"11", "11"},
		{"112", "11.2"},
		{"11222", "11.222"},
		{"112223", "11.222.3"},
		{"11222333", "11.222.333"},
		{"112223330", "11.222.333/0"},
		{"112223330001", "11.222.333/0001"},
		{"1122233300018", "11.222.333/0001-8"},
		{"11222333000181", "11.222.333/0001-81"},
		{"1122233300018199", "11.222.333/0001-81"},
		{"11.222.333/0001-81", "11.222.333/0001-81"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, cnpj.Format(tc.in), "input %q", tc.in)
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	inputs := []string{"", "1", "abc", "11.2", "11222333000181", "99 88 77 66 55 44 33 22", "x1x2x3"}
	for _, in := range inputs {
		n := cnpj.Normalize(in)
		if len(n) > cnpj.Length {
			n = n[:cnpj.Length]
		}
		assert.Equal(t, n, cnpj.Normalize(cnpj.Format(cnpj.Normalize(in))), "input %q", in)
	}
}
