package benchmarkorchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/Octogonapus/MemBenchmark/report"
	"github.com/Octogonapus/MemBenchmark/topology"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2Types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

type identityClient interface {
	GetInstanceIdentityDocument(ctx context.Context, params *imds.GetInstanceIdentityDocumentInput, optFns ...func(*imds.Options)) (*imds.GetInstanceIdentityDocumentOutput, error)
}

type instanceTypeClient interface {
	DescribeInstanceTypes(ctx context.Context, params *ec2.DescribeInstanceTypesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstanceTypesOutput, error)
}

// A HostInfoProvider adds platform details to the host description of a report.
type HostInfoProvider interface {
	Describe(ctx context.Context, host *report.HostInfo) error
}

type ec2HostInfo struct {
	imds identityClient
	// newEC2 builds a client for the instance's region.
	newEC2 func(region string) instanceTypeClient
}

// NewEC2HostInfo reads the instance type from the instance metadata service and looks up its vCPU
// and memory sizes.
func NewEC2HostInfo(cfg aws.Config) HostInfoProvider {
	return &ec2HostInfo{
		imds: imds.NewFromConfig(cfg),
		newEC2: func(region string) instanceTypeClient {
			return ec2.NewFromConfig(cfg, func(o *ec2.Options) {
				if region != "" {
					o.Region = region
				}
			})
		},
	}
}

func (h *ec2HostInfo) Describe(ctx context.Context, host *report.HostInfo) error {
	doc, err := h.imds.GetInstanceIdentityDocument(ctx, &imds.GetInstanceIdentityDocumentInput{})
	if err != nil {
		return fmt.Errorf("reading instance identity failed: %w", err)
	}
	host.InstanceType = doc.InstanceType

	resp, err := h.newEC2(doc.Region).DescribeInstanceTypes(ctx, &ec2.DescribeInstanceTypesInput{
		InstanceTypes: []ec2Types.InstanceType{ec2Types.InstanceType(doc.InstanceType)},
	})
	if err != nil {
		return fmt.Errorf("describing instance type %s failed: %w", doc.InstanceType, err)
	}
	if len(resp.InstanceTypes) == 0 {
		return fmt.Errorf("instance type %s not found", doc.InstanceType)
	}
	info := resp.InstanceTypes[0]
	if info.VCpuInfo != nil && info.VCpuInfo.DefaultVCpus != nil {
		host.VCPUs = *info.VCpuInfo.DefaultVCpus
	}
	if info.MemoryInfo != nil && info.MemoryInfo.SizeInMiB != nil {
		host.MemoryMiB = *info.MemoryInfo.SizeInMiB
	}
	return nil
}

func localHostInfo(topo *topology.Topology) *report.HostInfo {
	hostname, err := os.Hostname()
	if err != nil {
		slog.Warn("failed to read hostname", slog.String("error", err.Error()))
	}
	return &report.HostInfo{
		Hostname:  hostname,
		NumCPU:    runtime.NumCPU(),
		NUMANodes: topo.NumNodes(),
	}
}
