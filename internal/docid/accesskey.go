package docid

import (
	"fmt"
	"strconv"
)

// ValidAccessKey reports whether the 44th digit of the key matches the
// modulus-11 digit computed over the first 43.
func ValidAccessKey(s string) bool {
	d := OnlyDigits(s)
	if len(d) != AccessKeyLength {
		return false
	}
	dv, err := AccessKeyCheckDigit(d[:43])
	if err != nil {
		return false
	}
	return d[43] == dv
}

// AccessKeyCheckDigit computes cDV for a 43-digit base. Digits are weighted
// right to left with a multiplier cycling 2..9.
func AccessKeyCheckDigit(base string) (byte, error) {
	base = OnlyDigits(base)
	if len(base) != AccessKeyLength-1 {
		return 0, fmt.Errorf("docid: access key base must have 43 digits, got %d", len(base))
	}
	sum, weight := 0, 2
	for i := len(base) - 1; i >= 0; i-- {
		sum += int(base[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	return mod11Digit(sum), nil
}

// AccessKey is the decomposition of a 44-digit chave de acesso
type AccessKey struct {
	Key          string `json:"chave"`
	UFCode       string `json:"cuf"`
	UF           string `json:"uf,omitempty"`
	Year         int    `json:"ano"`
	Month        int    `json:"mes"`
	EmitterCNPJ  string `json:"cnpj_emitente"`
	Model        string `json:"modelo"`
	Series       string `json:"serie"`
	Number       string `json:"numero"`
	EmissionType string `json:"tipo_emissao"`
	NumericCode  string `json:"codigo_numerico"`
	CheckDigit   string `json:"dv"`
	Valid        bool   `json:"dv_valido"`
}

// ParseAccessKey splits a key into its fields. Only the length is enforced;
// Valid carries the check-digit outcome.
func ParseAccessKey(s string) (AccessKey, error) {
	d := OnlyDigits(s)
	if len(d) != AccessKeyLength {
		return AccessKey{}, fmt.Errorf("docid: access key must have 44 digits, got %d", len(d))
	}
	yy, _ := strconv.Atoi(d[2:4])
	mm, _ := strconv.Atoi(d[4:6])
	return AccessKey{
		Key:          d,
		UFCode:       d[0:2],
		UF:           ufByCode[d[0:2]],
		Year:         2000 + yy,
		Month:        mm,
		EmitterCNPJ:  d[6:20],
		Model:        d[20:22],
		Series:       d[22:25],
		Number:       d[25:34],
		EmissionType: d[34:35],
		NumericCode:  d[35:43],
		CheckDigit:   d[43:44],
		Valid:        ValidAccessKey(d),
	}, nil
}

// IBGE state codes
var ufByCode = map[string]string{
	"11": "RO", "12": "AC", "13": "AM", "14": "RR", "15": "PA", "16": "AP", "17": "TO",
	"21": "MA", "22": "PI", "23": "CE", "24": "RN", "25": "PB", "26": "PE", "27": "AL", "28": "SE", "29": "BA",
	"31": "MG", "32": "ES", "33": "RJ", "35": "SP",
	"41": "PR", "42": "SC", "43": "RS",
	"50": "MS", "51": "MT", "52": "GO", "53": "DF",
}
