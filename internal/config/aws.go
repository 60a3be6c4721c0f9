package config

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ParameterStore is the subset of *ssm.Client used to resolve secrets.
type ParameterStore interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

const ssmPrefix = "ssm:"

// LoadAWS loads the default AWS config. Under Lambda this picks up the
// execution role.
func LoadAWS(ctx context.Context) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx)
}

func isSSMRef(v string) bool {
	return strings.HasPrefix(v, ssmPrefix)
}

func resolveParameter(ctx context.Context, ps ParameterStore, ref string) (string, error) {
	out, err := ps.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(strings.TrimPrefix(ref, ssmPrefix)),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}
	if out.Parameter == nil {
		return "", nil
	}
	return strings.TrimSpace(aws.ToString(out.Parameter.Value)), nil
}
