package mfa

import (
	"strings"
	"testing"
)

func TestGenerateOTP_ReturnsSixDigits(t *testing.T) {
	otp, err := GenerateOTP()
	if err != nil {
		t.Fatalf("GenerateOTP: %v", err)
	}
	if len(otp) != 6 {
		t.Errorf("OTP length = %d, want 6", len(otp))
	}
	for _, c := range otp {
		if c < '0' || c > '9' {
			t.Errorf("OTP contains non-digit: %c", c)
		}
	}
}

func TestGenerateOTP_NotConstant(t *testing.T) {
	first, err := GenerateOTP()
	if err != nil {
		t.Fatalf("GenerateOTP: %v", err)
	}
	for i := 0; i < 20; i++ {
		otp, err := GenerateOTP()
		if err != nil {
			t.Fatalf("GenerateOTP: %v", err)
		}
		if otp != first {
			return
		}
	}
	t.Error("20 consecutive identical OTPs; generator is not random")
}

func TestHashOTP_Consistent(t *testing.T) {
	otp := "123456"
	if HashOTP(otp) != HashOTP(otp) {
		t.Error("HashOTP not consistent")
	}
	if len(HashOTP(otp)) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA-256 hex)", len(HashOTP(otp)))
	}
	if HashOTP("123456") == HashOTP("123457") {
		t.Error("different codes must hash differently")
	}
}

func TestOTPEqual(t *testing.T) {
	hash := HashOTP("654321")
	if !OTPEqual("654321", hash) {
		t.Error("matching code should compare equal")
	}
	if OTPEqual("654322", hash) {
		t.Error("wrong code should not compare equal")
	}
	if OTPEqual("", hash) {
		t.Error("empty code should not compare equal")
	}
}

func TestGenerateBackupCode_Format(t *testing.T) {
	code, err := GenerateBackupCode()
	if err != nil {
		t.Fatalf("GenerateBackupCode: %v", err)
	}
	parts := strings.Split(code, "-")
	if len(parts) != 3 {
		t.Fatalf("code %q should have 3 groups", code)
	}
	for _, p := range parts {
		if len(p) != 4 {
			t.Errorf("group %q should have 4 chars", p)
		}
		for _, c := range p {
			if !strings.ContainsRune("0123456789abcdef", c) {
				t.Errorf("code %q contains non-hex char %c", code, c)
			}
		}
	}
}
