package facta

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func intp(v int) *int { return &v }

func TestInterpret_TransportErrorWinsOverEverything(t *testing.T) {
	res := Interpret(BalanceResponse{
		TransportErr: errors.New("connection refused"),
		Err:          false,
		Code:         intp(7),
		Message:      "volte em 30 segundos",
	})
	assert.Equal(t, OutcomeSystemError, res.Outcome)
	assert.Equal(t, "volte em 30 segundos", res.Message)
}

func TestInterpret_TransportErrorWithoutMessageUsesErrorText(t *testing.T) {
	res := Interpret(BalanceResponse{TransportErr: errors.New("timeout")})
	assert.Equal(t, OutcomeSystemError, res.Outcome)
	assert.Equal(t, "timeout", res.Message)
}

func TestInterpret_SuccessParsesLocaleAwareBalance(t *testing.T) {
	cases := []struct {
		name string
		raw  any
		want float64
	}{
		{"brazilian format", "R$ 1.234,56", 1234.56},
		{"plain dot decimal", "1234.56", 1234.56},
		{"comma only", "950,10", 950.10},
		{"numeric json value", 88.5, 88.5},
		{"unparsable", "invalid", 0},
		{"missing field", nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := BalanceResponse{Err: false, Payload: map[string]any{}}
			if tc.raw != nil {
				resp.Payload["saldo_total"] = tc.raw
			}
			res := Interpret(resp)
			assert.Equal(t, OutcomeSuccess, res.Outcome)
			assert.InDelta(t, tc.want, res.Balance, 1e-9)
		})
	}
}

func TestInterpret_ThrottleMessageBeatsNumericCode(t *testing.T) {
	res := Interpret(BalanceResponse{
		Err:     true,
		Code:    intp(7), // would otherwise map to NeedsAuthorization
		Message: "Limite excedido, volte em 60 segundos",
	})
	assert.Equal(t, OutcomeThrottled, res.Outcome)
}

func TestInterpret_NumericCodes(t *testing.T) {
	cases := []struct {
		code int
		want Outcome
	}{
		{7, OutcomeNeedsAuthorization},
		{9, OutcomeNeedsEnrollment},
		{35, OutcomeDataMismatch},
		{5, OutcomeBirthdayWindow},
		{10, OutcomeBirthdayWindow},
		{102, OutcomeBalanceNotFound},
		{101, OutcomeNoBalance},
		{104, OutcomeNoBalance},
	}
	for _, tc := range cases {
		res := Interpret(BalanceResponse{Err: true, Code: intp(tc.code), Message: "whatever"})
		assert.Equal(t, tc.want, res.Outcome, "code %d", tc.code)
	}
}

func TestInterpret_CodeBeatsFreeText(t *testing.T) {
	// A message that would match a text rule must not shadow the code rule.
	res := Interpret(BalanceResponse{
		Err:     true,
		Code:    intp(9),
		Message: "Cliente não possui saldo FGTS",
	})
	assert.Equal(t, OutcomeNeedsEnrollment, res.Outcome)
}

func TestInterpret_FreeTextFallbacks(t *testing.T) {
	cases := []struct {
		msg  string
		want Outcome
	}{
		{"Saldo não encontrado para o CPF informado", OutcomeBalanceNotFound},
		{"Cliente não possui saldo disponível", OutcomeNoBalance},
		{"Saldo FGTS insuficiente", OutcomeNoBalance},
		{"Instituição sem autorização do trabalhador", OutcomeNeedsAuthorization},
	}
	for _, tc := range cases {
		res := Interpret(BalanceResponse{Err: true, Message: tc.msg})
		assert.Equal(t, tc.want, res.Outcome, "msg %q", tc.msg)
	}
}

func TestInterpret_TextMatchingIsCaseInsensitive(t *testing.T) {
	res := Interpret(BalanceResponse{Err: true, Message: "SALDO NÃO ENCONTRADO"})
	assert.Equal(t, OutcomeBalanceNotFound, res.Outcome)
}

func TestInterpret_UnknownResponseIsSystemErrorWithMessagePreserved(t *testing.T) {
	res := Interpret(BalanceResponse{Err: true, Code: intp(999), Message: "erro interno xyz"})
	assert.Equal(t, OutcomeSystemError, res.Outcome)
	assert.Equal(t, "erro interno xyz", res.Message)
}

func TestInterpret_IsDeterministic(t *testing.T) {
	resp := BalanceResponse{Err: true, Code: intp(35), Message: "mudanças cadastrais"}
	first := Interpret(resp)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Interpret(resp))
	}
}

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "1.234,56", FormatBRL(1234.56))
	assert.Equal(t, "0,00", FormatBRL(0))
	assert.Equal(t, "999,90", FormatBRL(999.9))
	assert.Equal(t, "1.000.000,00", FormatBRL(1e6))
	assert.Equal(t, "-1.234,50", FormatBRL(-1234.5))
}

func TestParseBRL_RoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1, 999.99, 1234.56, 1000000} {
		assert.InDelta(t, v, ParseBRL("R$ "+FormatBRL(v)), 1e-9)
	}
}
