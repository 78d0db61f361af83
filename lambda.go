package relfreq

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/viper"

	"github.com/bwmills/relfreq/internal/pkg/relfs"
	"github.com/bwmills/relfreq/internal/pkg/reliam"
	"github.com/bwmills/relfreq/internal/pkg/rellambda"
)

var (
	currentJob *Job
)

// runningInLambda infers if the program is running in AWS lambda via inspection of the environment
func runningInLambda() bool {
	expectedEnvVars := []string{"LAMBDA_TASK_ROOT", "AWS_EXECUTION_ENV", "LAMBDA_RUNTIME_DIR"}
	for _, envVar := range expectedEnvVars {
		if os.Getenv(envVar) == "" {
			return false
		}
	}
	return true
}

// startLambdaHandler hands control of the process to the Lambda runtime.
// Does not return.
func startLambdaHandler(job *Job) {
	currentJob = job
	lambda.Start(handleRequest)
}

func handleRequest(ctx context.Context, t task) (string, error) {
	currentJob.fileSystem = relfs.InitFilesystem(t.FileSystemType)
	currentJob.intermediateBins = t.IntermediateBins
	currentJob.intermediateDir = t.IntermediateDir
	currentJob.outputPath = t.OutputPath
	if tokenizer, ok := currentJob.Map.(*Tokenizer); ok && t.MaxTokenLength > 0 {
		tokenizer.MaxTokenLength = t.MaxTokenLength
	}

	if t.Phase == MapPhase {
		err := currentJob.runMapper(t.BinID, t.Splits)
		return fmt.Sprintf("%v", t), err
	} else if t.Phase == ReducePhase {
		err := currentJob.runReducer(t.BinID)
		return fmt.Sprintf("%v", t), err
	}
	return "", fmt.Errorf("Unknown phase: %d", t.Phase)
}

type lambdaExecutor struct {
	client       *rellambda.Client
	functionName string
	roleName     string
}

func newLambdaExecutor() *lambdaExecutor {
	return &lambdaExecutor{
		client:       rellambda.NewClient(),
		functionName: viper.GetString("lambda_function_name"),
		roleName:     viper.GetString("lambda_role_name"),
	}
}

func (l *lambdaExecutor) invoke(t task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}

	_, err = l.client.Invoke(l.functionName, payload)
	return err
}

func (l *lambdaExecutor) RunMapper(job *Job, mapperID uint, splits []inputSplit) error {
	return l.invoke(task{
		Phase:            MapPhase,
		BinID:            mapperID,
		Splits:           splits,
		IntermediateBins: job.intermediateBins,
		IntermediateDir:  job.intermediateDir,
		OutputPath:       job.outputPath,
		MaxTokenLength:   job.config.MaxTokenLength,
		FileSystemType:   relfs.S3,
	})
}

func (l *lambdaExecutor) RunReducer(job *Job, binID uint) error {
	return l.invoke(task{
		Phase:            ReducePhase,
		BinID:            binID,
		IntermediateBins: job.intermediateBins,
		IntermediateDir:  job.intermediateDir,
		OutputPath:       job.outputPath,
		FileSystemType:   relfs.S3,
	})
}

// Deploy provisions the IAM role and Lambda function that will run the
// job's tasks.
func (l *lambdaExecutor) Deploy() {
	iamClient := reliam.NewIAMClient()
	roleARN, err := iamClient.DeployPermissions(l.roleName)
	if err != nil {
		panic(err)
	}

	err = l.client.DeployFunction(&rellambda.FunctionConfig{
		Name:       l.functionName,
		RoleARN:    roleARN,
		Timeout:    viper.GetInt64("lambda_timeout"),
		MemorySize: viper.GetInt64("lambda_memory"),
	})
	if err != nil {
		panic(err)
	}
}
