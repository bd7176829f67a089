package kms

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

type kmsDecrypter interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// AWSKeyUnwrapper unwraps key material that was encrypted with an AWS KMS key.
type AWSKeyUnwrapper struct {
	client    kmsDecrypter
	kmsKeyARN string
}

func NewAWSKeyUnwrapper(cfg aws.Config, kmsKeyARN string) *AWSKeyUnwrapper {
	return &AWSKeyUnwrapper{
		client:    kms.NewFromConfig(cfg),
		kmsKeyARN: kmsKeyARN,
	}
}

func (u *AWSKeyUnwrapper) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	input := &kms.DecryptInput{
		CiphertextBlob: wrapped,
	}
	if u.kmsKeyARN != "" {
		input.KeyId = aws.String(u.kmsKeyARN)
	}

	result, err := u.client.Decrypt(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("aws kms decrypt failed: %w", err)
	}

	return result.Plaintext, nil
}
