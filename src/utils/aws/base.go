package aws_handler

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
)

// AWSHandler bundles the AWS service clients the service needs. Today that is
// only Secrets Manager, used to resolve database and SMTP passwords.
type AWSHandler struct {
	SecretManager *SecretManager
}

func NewAWSHandler(region string) (*AWSHandler, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, err
	}

	return &AWSHandler{
		SecretManager: NewSecretManager(secretsmanager.New(sess)),
	}, nil
}
