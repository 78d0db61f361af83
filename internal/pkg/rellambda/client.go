package rellambda

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/lambda/lambdaiface"
	log "github.com/sirupsen/logrus"
)

// MaxInvokeRetries is the number of times an invocation that returns a
// function error is retried before giving up.
const MaxInvokeRetries = 3

// Client deploys and invokes the Lambda function that runs job tasks.
type Client struct {
	lambdaiface.LambdaAPI

	// buildPackage produces the deployment artifact. Overridable in tests
	// so that deployment logic can be exercised without a cross-compile.
	buildPackage func() ([]byte, error)
}

// FunctionConfig describes the Lambda function a Client deploys.
type FunctionConfig struct {
	Name       string
	RoleARN    string
	Timeout    int64
	MemorySize int64
}

// NewClient initializes a Client from the ambient AWS configuration.
func NewClient() *Client {
	sess := session.Must(session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}))
	return &Client{LambdaAPI: lambda.New(sess)}
}

// functionNeedsUpdate reports whether the deployed function's code hash
// differs from the hash of functionCode.
func functionNeedsUpdate(functionCode []byte, cfg *lambda.FunctionConfiguration) bool {
	codeHash := sha256.New()
	codeHash.Write(functionCode)
	codeHashDigest := base64.StdEncoding.EncodeToString(codeHash.Sum(nil))
	return codeHashDigest != *cfg.CodeSha256
}

// functionConfigNeedsUpdate reports whether the deployed function's
// settings differ from the desired config.
func functionConfigNeedsUpdate(config *FunctionConfig, cfg *lambda.FunctionConfiguration) bool {
	return aws.StringValue(cfg.Role) != config.RoleARN ||
		aws.Int64Value(cfg.Timeout) != config.Timeout ||
		aws.Int64Value(cfg.MemorySize) != config.MemorySize
}

// DeployFunction creates the configured function, or brings an existing
// deployment up to date with the local binary and settings.
func (c *Client) DeployFunction(config *FunctionConfig) error {
	if c.buildPackage == nil {
		c.buildPackage = buildLambdaPackage
	}
	functionCode, err := c.buildPackage()
	if err != nil {
		return err
	}

	existing, err := c.getFunction(config.Name)
	if err == nil && existing != nil && existing.Configuration != nil {
		if functionNeedsUpdate(functionCode, existing.Configuration) {
			log.Debugf("Updating Lambda function '%s'", config.Name)
			if err := c.updateFunctionCode(config.Name, functionCode); err != nil {
				return err
			}
		}
		if functionConfigNeedsUpdate(config, existing.Configuration) {
			log.Debugf("Updating configuration of Lambda function '%s'", config.Name)
			return c.updateFunctionConfig(config)
		}
		log.Debugf("Function '%s' is already up-to-date", config.Name)
		return nil
	}

	log.Debugf("Creating Lambda function '%s'", config.Name)
	return c.createFunction(config, functionCode)
}

// DeleteFunction tears down the named function.
func (c *Client) DeleteFunction(functionName string) error {
	deleteInput := &lambda.DeleteFunctionInput{
		FunctionName: aws.String(functionName),
	}

	_, err := c.LambdaAPI.DeleteFunction(deleteInput)
	return err
}

// Invoke synchronously invokes the named function with the given payload,
// retrying on function errors.
func (c *Client) Invoke(functionName string, payload []byte) ([]byte, error) {
	invokeInput := &lambda.InvokeInput{
		FunctionName: aws.String(functionName),
		Payload:      payload,
	}

	var output *lambda.InvokeOutput
	var err error
	for attempt := 0; attempt <= MaxInvokeRetries; attempt++ {
		output, err = c.LambdaAPI.Invoke(invokeInput)
		if err != nil {
			return nil, err
		}
		if output.FunctionError == nil {
			return output.Payload, nil
		}
		log.Warnf("Invocation of '%s' returned a function error (attempt %d): %s",
			functionName, attempt+1, aws.StringValue(output.FunctionError))
	}

	return nil, fmt.Errorf("invocation of '%s' failed after %d attempts", functionName, MaxInvokeRetries+1)
}

func crossCompile(binName string) (string, error) {
	tmpDir, err := ioutil.TempDir("", "")
	if err != nil {
		return "", err
	}

	outputPath := filepath.Join(tmpDir, binName)

	args := []string{
		"build",
		"-o", outputPath,
		"-ldflags", "-s -w",
		".",
	}
	cmd := exec.Command("go", args...)

	cmd.Env = append(os.Environ(), "GOOS=linux")

	combinedOut, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s\n%s", err, combinedOut)
	}

	return outputPath, nil
}

// buildLambdaPackage cross-compiles the current module for Lambda and
// zips the resulting binary as the deployment artifact.
func buildLambdaPackage() ([]byte, error) {
	log.Debug("Compiling job binary for Lambda")
	binFile, err := crossCompile("lambda_artifact")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(filepath.Dir(binFile))

	binReader, err := os.Open(binFile)
	if err != nil {
		return nil, err
	}
	defer binReader.Close()

	zipBuf := new(bytes.Buffer)
	archive := zip.NewWriter(zipBuf)
	header := &zip.FileHeader{
		Name:           "main",
		ExternalAttrs:  (0777 << 16), // File permissions
		CreatorVersion: (3 << 8),     // Magic number indicating a Unix creator
	}

	writer, err := archive.CreateHeader(header)
	if err != nil {
		return nil, err
	}

	if _, err = io.Copy(writer, binReader); err != nil {
		return nil, err
	}

	if err = archive.Close(); err != nil {
		return nil, err
	}

	return zipBuf.Bytes(), nil
}

func (c *Client) updateFunctionCode(functionName string, code []byte) error {
	updateArgs := &lambda.UpdateFunctionCodeInput{
		ZipFile:      code,
		FunctionName: aws.String(functionName),
	}

	_, err := c.UpdateFunctionCode(updateArgs)
	return err
}

func (c *Client) updateFunctionConfig(config *FunctionConfig) error {
	updateArgs := &lambda.UpdateFunctionConfigurationInput{
		FunctionName: aws.String(config.Name),
		Role:         aws.String(config.RoleARN),
		Timeout:      aws.Int64(config.Timeout),
		MemorySize:   aws.Int64(config.MemorySize),
	}

	_, err := c.UpdateFunctionConfiguration(updateArgs)
	return err
}

func (c *Client) createFunction(config *FunctionConfig, code []byte) error {
	funcCode := &lambda.FunctionCode{
		ZipFile: code,
	}

	createArgs := &lambda.CreateFunctionInput{
		Code:         funcCode,
		FunctionName: aws.String(config.Name),
		Handler:      aws.String("main"),
		Runtime:      aws.String(lambda.RuntimeGo1X),
		Role:         aws.String(config.RoleARN),
		Timeout:      aws.Int64(config.Timeout),
		MemorySize:   aws.Int64(config.MemorySize),
	}

	_, err := c.CreateFunction(createArgs)
	return err
}

func (c *Client) getFunction(functionName string) (*lambda.GetFunctionOutput, error) {
	getInput := &lambda.GetFunctionInput{
		FunctionName: aws.String(functionName),
	}

	return c.GetFunction(getInput)
}
