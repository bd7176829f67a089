package kms

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/spounge-ai/parishvault/internal/domain"
	app_errors "github.com/spounge-ai/parishvault/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func material(version int) KeyMaterial {
	return KeyMaterial{Version: version, Material: bytes.Repeat([]byte{byte(version + 40)}, 32)}
}

func newTestCipher(t *testing.T, current int, versions ...int) *Cipher {
	t.Helper()
	keys := make([]KeyMaterial, 0, len(versions))
	for _, v := range versions {
		keys = append(keys, material(v))
	}
	c, err := NewCipher(current, keys)
	require.NoError(t, err)
	return c
}

func TestCipher_RoundTrip(t *testing.T) {
	c := newTestCipher(t, 2, 1, 2)

	for _, plaintext := range [][]byte{
		[]byte("host=db user=parish password=s3cret"),
		[]byte(""),
		bytes.Repeat([]byte{0xff}, 4096),
	} {
		ct, err := c.Encrypt(plaintext)
		require.NoError(t, err)

		got, err := c.Decrypt(ct, c.CurrentKeyVersion())
		require.NoError(t, err)
		assert.Equal(t, len(plaintext), len(got))
		assert.True(t, bytes.Equal(plaintext, got))
	}
}

func TestCipher_EncryptIsNonDeterministic(t *testing.T) {
	c := newTestCipher(t, 1, 1)
	plaintext := []byte("same input")

	a, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	b, err := c.Encrypt(plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)

	for _, ct := range []string{a, b} {
		got, err := c.Decrypt(ct, 1)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestCipher_Reencrypt(t *testing.T) {
	c := newTestCipher(t, 2, 1, 2)
	old, err := NewCipher(1, []KeyMaterial{material(1), material(2)})
	require.NoError(t, err)

	plaintext := []byte("rotate me")
	v1, err := old.Encrypt(plaintext)
	require.NoError(t, err)

	v2, err := c.Reencrypt(v1, 1, 2)
	require.NoError(t, err)

	got, err := c.Decrypt(v2, 2)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)

	_, err = c.Decrypt(v2, 1)
	assert.ErrorIs(t, err, app_errors.ErrCryptoFailure)

	fresh, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	freshRaw, err := base64.StdEncoding.DecodeString(fresh)
	require.NoError(t, err)
	rotatedRaw, err := base64.StdEncoding.DecodeString(v2)
	require.NoError(t, err)
	assert.Equal(t, len(freshRaw), len(rotatedRaw))
}

func TestCipher_DecryptFailures(t *testing.T) {
	c := newTestCipher(t, 1, 1)
	ct, err := c.Encrypt([]byte("payload"))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name       string
		ciphertext string
		version    int
	}{
		{"unknown version", ct, 7},
		{"not base64", "%%%not-base64%%%", 1},
		{"too short", base64.StdEncoding.EncodeToString([]byte("short")), 1},
		{"tampered tag", tampered, 1},
		{"empty", "", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decrypt(tt.ciphertext, tt.version)
			require.Error(t, err)
			assert.True(t, errors.Is(err, app_errors.ErrCryptoFailure))
		})
	}
}

func TestCipher_ReencryptUnknownTarget(t *testing.T) {
	c := newTestCipher(t, 1, 1)
	ct, err := c.Encrypt([]byte("x"))
	require.NoError(t, err)

	_, err = c.Reencrypt(ct, 1, 3)
	assert.ErrorIs(t, err, app_errors.ErrCryptoFailure)
}

func TestNewCipher_Validation(t *testing.T) {
	_, err := NewCipher(2, []KeyMaterial{material(1)})
	assert.ErrorContains(t, err, "current key version 2")

	_, err = NewCipher(1, nil)
	assert.Error(t, err)

	_, err = NewCipher(1, []KeyMaterial{{Version: 1, Material: []byte("too short")}})
	assert.ErrorContains(t, err, "at least 32 bytes")

	_, err = NewCipher(1, []KeyMaterial{material(1), material(1)})
	assert.ErrorContains(t, err, "more than once")
}

func TestCipher_Versions(t *testing.T) {
	c := newTestCipher(t, 3, 3, 1, 2)
	assert.Equal(t, []int{1, 2, 3}, c.Versions())
	assert.True(t, c.HasVersion(2))
	assert.False(t, c.HasVersion(4))
}

func TestDescriptorSealAndOpen(t *testing.T) {
	c := newTestCipher(t, 1, 1)
	d := &domain.ConnectionDescriptor{
		Host: "db.internal", Port: 5432, Database: "parish_abc", User: "parish_u_abc", Password: "pw", SSLMode: "require",
	}

	ct, version, err := SealDescriptor(c, d)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.NotContains(t, ct, "parish_abc")

	opened, err := OpenDescriptor(c, ct, version)
	require.NoError(t, err)
	assert.Equal(t, d, opened)

	_, _, err = SealDescriptor(c, &domain.ConnectionDescriptor{})
	assert.ErrorIs(t, err, app_errors.ErrInvalidInput)
}

type fakeDecrypter struct {
	plaintext []byte
	err       error
	got       *kms.DecryptInput
}

func (f *fakeDecrypter) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &kms.DecryptOutput{Plaintext: f.plaintext}, nil
}

func TestDecodeKeyMaterial(t *testing.T) {
	plain := bytes.Repeat([]byte{7}, 32)
	dec := &fakeDecrypter{plaintext: plain}
	unwrapper := &AWSKeyUnwrapper{client: dec, kmsKeyARN: "arn:aws:kms:eu-west-1:123456789012:key/abc"}

	keys, err := DecodeKeyMaterial(context.Background(), []EncodedKey{
		{Version: 1, Material: base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32))},
		{Version: 2, Material: base64.StdEncoding.EncodeToString([]byte("wrapped-blob")), KMSWrapped: true},
	}, unwrapper)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, plain, keys[1].Material)
	assert.Equal(t, []byte("wrapped-blob"), dec.got.CiphertextBlob)

	_, err = DecodeKeyMaterial(context.Background(), []EncodedKey{
		{Version: 1, Material: base64.StdEncoding.EncodeToString([]byte("x")), KMSWrapped: true},
	}, nil)
	assert.ErrorContains(t, err, "no unwrapper")

	_, err = DecodeKeyMaterial(context.Background(), []EncodedKey{{Version: 1, Material: "!!"}}, nil)
	assert.Error(t, err)
}
