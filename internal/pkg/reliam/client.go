package reliam

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
	log "github.com/sirupsen/logrus"
)

// PolicyName is the name of the inline policy attached to the execution role.
const PolicyName = "relfreq-permissions"

// AssumePolicyDocument allows Lambda to assume the execution role.
const AssumePolicyDocument = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Sid": "",
      "Effect": "Allow",
      "Principal": {
        "Service": [
          "lambda.amazonaws.com"
        ]
      },
      "Action": "sts:AssumeRole"
    }
  ]
}`

// AttachPolicyDocument grants the execution role access to the S3 objects
// and CloudWatch logs that job tasks touch.
const AttachPolicyDocument = `{
    "Version": "2012-10-17",
    "Statement": [
        {
            "Effect": "Allow",
            "Action": [
                "s3:*"
            ],
            "Resource": [
                "*"
            ]
        },
        {
            "Effect": "Allow",
            "Action": [
                "logs:CreateLogGroup",
                "logs:CreateLogStream",
                "logs:PutLogEvents"
            ],
            "Resource": "*"
        }
    ]
}`

// IAMClient provisions the IAM role that job Lambda functions execute under.
type IAMClient struct {
	iamiface.IAMAPI
}

// NewIAMClient initializes an IAMClient from the ambient AWS configuration.
func NewIAMClient() *IAMClient {
	sess := session.Must(session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}))
	return &IAMClient{iam.New(sess)}
}

// deployRole creates or updates the named role, returning its ARN.
func (c IAMClient) deployRole(roleName string) (string, error) {
	getInput := &iam.GetRoleInput{
		RoleName: aws.String(roleName),
	}
	existing, err := c.GetRole(getInput)
	if err == nil && existing != nil && existing.Role != nil {
		if aws.StringValue(existing.Role.AssumeRolePolicyDocument) != AssumePolicyDocument {
			log.Debugf("Updating assume role policy of IAM role '%s'", roleName)
			updateInput := &iam.UpdateAssumeRolePolicyInput{
				RoleName:       aws.String(roleName),
				PolicyDocument: aws.String(AssumePolicyDocument),
			}
			if _, err := c.UpdateAssumeRolePolicy(updateInput); err != nil {
				return "", err
			}
		}
		return aws.StringValue(existing.Role.Arn), nil
	}

	log.Debugf("Creating IAM role '%s'", roleName)
	createInput := &iam.CreateRoleInput{
		RoleName:                 aws.String(roleName),
		AssumeRolePolicyDocument: aws.String(AssumePolicyDocument),
	}
	created, err := c.CreateRole(createInput)
	if err != nil {
		return "", err
	}
	return aws.StringValue(created.Role.Arn), nil
}

// deployPolicy attaches (or refreshes) the inline permissions policy on
// the named role.
func (c IAMClient) deployPolicy(roleName string) error {
	getInput := &iam.GetRolePolicyInput{
		RoleName:   aws.String(roleName),
		PolicyName: aws.String(PolicyName),
	}
	existing, err := c.GetRolePolicy(getInput)
	if err == nil && existing != nil && aws.StringValue(existing.PolicyDocument) == AttachPolicyDocument {
		return nil
	}

	log.Debugf("Attaching permissions policy to IAM role '%s'", roleName)
	putInput := &iam.PutRolePolicyInput{
		RoleName:       aws.String(roleName),
		PolicyName:     aws.String(PolicyName),
		PolicyDocument: aws.String(AttachPolicyDocument),
	}
	_, err = c.PutRolePolicy(putInput)
	return err
}

// DeployPermissions sets up the execution role and its permissions,
// returning the role ARN.
func (c IAMClient) DeployPermissions(roleName string) (string, error) {
	arn, err := c.deployRole(roleName)
	if err != nil {
		return "", err
	}

	if err := c.deployPolicy(roleName); err != nil {
		return "", err
	}
	return arn, nil
}

// DeletePermissions removes the execution role and its inline policy.
func (c IAMClient) DeletePermissions(roleName string) error {
	deletePolicyInput := &iam.DeleteRolePolicyInput{
		RoleName:   aws.String(roleName),
		PolicyName: aws.String(PolicyName),
	}
	if _, err := c.DeleteRolePolicy(deletePolicyInput); err != nil {
		return err
	}

	deleteRoleInput := &iam.DeleteRoleInput{
		RoleName: aws.String(roleName),
	}
	_, err := c.DeleteRole(deleteRoleInput)
	return err
}
