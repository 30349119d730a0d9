package dto

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	RegisterValidators(v)
	return v
}

func TestCreateOperationRequest_Validation(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name    string
		req     CreateOperationRequest
		wantTag string
	}{
		{
			name: "deposit",
			req:  CreateOperationRequest{Kind: "DEPOSIT", Amount: decimal.RequireFromString("5000")},
		},
		{
			name: "transfer with destination",
			req: CreateOperationRequest{
				Kind: "TRANSFER", Amount: decimal.RequireFromString("0.01"),
				DestinationAccountNumber: "4000123412341234",
			},
		},
		{
			name:    "zero amount",
			req:     CreateOperationRequest{Kind: "DEPOSIT", Amount: decimal.Zero},
			wantTag: "positive_decimal",
		},
		{
			name:    "negative amount",
			req:     CreateOperationRequest{Kind: "WITHDRAWAL", Amount: decimal.NewFromInt(-3)},
			wantTag: "positive_decimal",
		},
		{
			name: "short destination number",
			req: CreateOperationRequest{
				Kind: "TRANSFER", Amount: decimal.NewFromInt(10), DestinationAccountNumber: "1234",
			},
			wantTag: "account_number",
		},
		{
			name: "non digit destination number",
			req: CreateOperationRequest{
				Kind: "TRANSFER", Amount: decimal.NewFromInt(10), DestinationAccountNumber: "4000-1234-1234-12",
			},
			wantTag: "account_number",
		},
		{
			name:    "missing kind",
			req:     CreateOperationRequest{Amount: decimal.NewFromInt(10)},
			wantTag: "required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			if tt.wantTag == "" {
				assert.NoError(t, err)
				return
			}
			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.wantTag, verrs[0].Tag())
		})
	}
}

func TestOpenAccountRequest_Validation(t *testing.T) {
	v := newValidator()

	assert.NoError(t, v.Struct(OpenAccountRequest{OwnerID: "7b1f4c3e-2f0a-4a3b-9d5e-2c8e5b7a1d10"}))
	assert.Error(t, v.Struct(OpenAccountRequest{OwnerID: "not-a-uuid"}))
	assert.Error(t, v.Struct(OpenAccountRequest{}))
}

func TestSanitizeStruct_TrimsAndEscapes(t *testing.T) {
	req := CreateOperationRequest{
		Kind:                     "  DEPOSIT ",
		DestinationAccountNumber: "<b>4000</b>",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "DEPOSIT", req.Kind)
	assert.Equal(t, "&lt;b&gt;4000&lt;/b&gt;", req.DestinationAccountNumber)
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	note := "  keep me  "
	req := struct {
		Note  *string
		Empty *string
	}{Note: &note}
	SanitizeStruct(&req)

	assert.Equal(t, "keep me", *req.Note)
	assert.Nil(t, req.Empty)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	req := OpenAccountRequest{OwnerID: "  x  "}
	SanitizeStruct(req)
	assert.Equal(t, "  x  ", req.OwnerID)
}
