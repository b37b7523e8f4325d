package pkg

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"
)

var projectNamePattern = regexp.MustCompile(`^[a-z][a-z0-9-]{2,19}$`)

var allowedEnvironments = map[string]bool{
	"dev":     true,
	"staging": true,
	"prod":    true,
}

const maxNodeCount = 10

// logRetentionDays are the retention periods CloudWatch Logs accepts.
var logRetentionDays = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 14: true, 30: true, 60: true, 90: true,
	120: true, 150: true, 180: true, 365: true, 400: true, 545: true, 731: true,
	1096: true, 1827: true, 2192: true, 2557: true, 2922: true, 3288: true, 3653: true,
}

// smallInstance reports whether nodes of instanceType are too small to
// schedule the Prometheus stack: nano, micro and small sizes allow only a
// handful of pods per node.
func smallInstance(instanceType string) bool {
	_, size, _ := strings.Cut(instanceType, ".")
	switch size {
	case "nano", "micro", "small":
		return true
	}
	return false
}

// StackConfig holds the validated inputs of one stack.
type StackConfig struct {
	ProjectName string
	Environment string
	Region      string

	UseExistingVpc           bool
	ExistingVpcID            string
	ExistingPublicSubnetIDs  []string
	ExistingPrivateSubnetIDs []string

	VpcCidr            string
	PublicSubnetCidrs  []string
	PrivateSubnetCidrs []string
	SingleNatGateway   bool

	KubernetesVersion string
	NodeInstanceType  string
	NodeMinSize       int
	NodeDesiredSize   int
	NodeMaxSize       int

	ImageTag          string
	AppNamespace      string
	AppValuesFile     string
	DeployApp         bool
	EnableMonitoring  bool
	LogRetentionDays  int
	ECRImageRetention int
}

// DefaultStackConfig returns the configuration used when a key is not set.
func DefaultStackConfig() StackConfig {
	return StackConfig{
		ProjectName:        "cloudforge",
		Environment:        "dev",
		Region:             "us-west-2",
		VpcCidr:            "10.0.0.0/16",
		PublicSubnetCidrs:  []string{"10.0.1.0/24", "10.0.2.0/24"},
		PrivateSubnetCidrs: []string{"10.0.10.0/24", "10.0.20.0/24"},
		SingleNatGateway:   true,
		KubernetesVersion:  "1.32",
		NodeInstanceType:   "t3.medium",
		NodeMinSize:        1,
		NodeDesiredSize:    2,
		NodeMaxSize:        3,
		ImageTag:           "latest",
		DeployApp:          true,
		EnableMonitoring:   true,
		LogRetentionDays:   7,
		ECRImageRetention:  10,
	}
}

// LoadStackConfig reads the stack configuration and validates it
func LoadStackConfig(ctx *pulumi.Context) (*StackConfig, error) {
	cfg := config.New(ctx, "")
	out := DefaultStackConfig()

	if v := cfg.Get("projectName"); v != "" {
		out.ProjectName = v
	}
	if v := cfg.Get("environment"); v != "" {
		out.Environment = v
	}
	if v := config.New(ctx, "aws").Get("region"); v != "" {
		out.Region = v
	}

	out.UseExistingVpc = cfg.GetBool("useExistingVpc")
	out.ExistingVpcID = cfg.Get("existingVpcId")
	if err := getStrings(cfg, "existingPublicSubnetIds", &out.ExistingPublicSubnetIDs); err != nil {
		return nil, err
	}
	if err := getStrings(cfg, "existingPrivateSubnetIds", &out.ExistingPrivateSubnetIDs); err != nil {
		return nil, err
	}

	if v := cfg.Get("vpcCidr"); v != "" {
		out.VpcCidr = v
	}
	if err := getStrings(cfg, "publicSubnetCidrs", &out.PublicSubnetCidrs); err != nil {
		return nil, err
	}
	if err := getStrings(cfg, "privateSubnetCidrs", &out.PrivateSubnetCidrs); err != nil {
		return nil, err
	}
	if cfg.Get("singleNatGateway") != "" {
		out.SingleNatGateway = cfg.GetBool("singleNatGateway")
	}

	if v := cfg.Get("kubernetesVersion"); v != "" {
		out.KubernetesVersion = v
	}
	if v := cfg.Get("nodeInstanceType"); v != "" {
		out.NodeInstanceType = v
	}
	getInt(cfg, "nodeMinSize", &out.NodeMinSize)
	getInt(cfg, "nodeDesiredSize", &out.NodeDesiredSize)
	getInt(cfg, "nodeMaxSize", &out.NodeMaxSize)

	if v := cfg.Get("imageTag"); v != "" {
		out.ImageTag = v
	}
	out.AppNamespace = out.ProjectName
	if v := cfg.Get("appNamespace"); v != "" {
		out.AppNamespace = v
	}
	out.AppValuesFile = cfg.Get("appValuesFile")
	// The first deploy pass creates the registry before an image exists.
	if cfg.Get("deployApp") != "" {
		out.DeployApp = cfg.GetBool("deployApp")
	}
	// Monitoring is off by default on nodes too small to run it.
	out.EnableMonitoring = !smallInstance(out.NodeInstanceType)
	if cfg.Get("enableMonitoring") != "" {
		out.EnableMonitoring = cfg.GetBool("enableMonitoring")
	}
	getInt(cfg, "logRetentionDays", &out.LogRetentionDays)
	getInt(cfg, "ecrImageRetention", &out.ECRImageRetention)

	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stack configuration: %w", err)
	}
	return &out, nil
}

func getStrings(cfg *config.Config, key string, dst *[]string) error {
	if cfg.Get(key) == "" {
		return nil
	}
	var values []string
	if err := cfg.GetObject(key, &values); err != nil {
		return fmt.Errorf("config %s: %w", key, err)
	}
	*dst = values
	return nil
}

func getInt(cfg *config.Config, key string, dst *int) {
	if cfg.Get(key) != "" {
		*dst = cfg.GetInt(key)
	}
}

// Validate reports every problem with the configuration at once.
func (c StackConfig) Validate() error {
	var errs []error

	if !projectNamePattern.MatchString(c.ProjectName) {
		errs = append(errs, fmt.Errorf("projectName %q must be 3-20 lowercase letters, digits or hyphens", c.ProjectName))
	}
	if !allowedEnvironments[c.Environment] {
		errs = append(errs, fmt.Errorf("environment %q must be one of dev, staging, prod", c.Environment))
	}
	if c.Region == "" {
		errs = append(errs, errors.New("region is required"))
	}

	if c.UseExistingVpc {
		if c.ExistingVpcID == "" {
			errs = append(errs, errors.New("existingVpcId is required when useExistingVpc is true"))
		}
	} else {
		errs = append(errs, c.validateNewVpc()...)
	}

	if c.AppNamespace != "" && !projectNamePattern.MatchString(c.AppNamespace) {
		errs = append(errs, fmt.Errorf("appNamespace %q must be 3-20 lowercase letters, digits or hyphens", c.AppNamespace))
	}
	if c.NodeInstanceType == "" {
		errs = append(errs, errors.New("nodeInstanceType is required"))
	}
	if c.NodeMinSize < 1 || c.NodeMinSize > c.NodeDesiredSize || c.NodeDesiredSize > c.NodeMaxSize || c.NodeMaxSize > maxNodeCount {
		errs = append(errs, fmt.Errorf("node sizes must satisfy 1 <= min (%d) <= desired (%d) <= max (%d) <= %d",
			c.NodeMinSize, c.NodeDesiredSize, c.NodeMaxSize, maxNodeCount))
	}
	if c.EnableMonitoring && smallInstance(c.NodeInstanceType) {
		errs = append(errs, fmt.Errorf("enableMonitoring needs medium or larger nodes, got %s", c.NodeInstanceType))
	}
	if !logRetentionDays[c.LogRetentionDays] {
		errs = append(errs, fmt.Errorf("logRetentionDays %d is not a CloudWatch retention period (1, 3, 5, 7, 14, 30, 60, 90, ...)", c.LogRetentionDays))
	}
	if c.ECRImageRetention < 1 {
		errs = append(errs, fmt.Errorf("ecrImageRetention must be positive, got %d", c.ECRImageRetention))
	}

	return errors.Join(errs...)
}

func (c StackConfig) validateNewVpc() []error {
	var errs []error

	_, vpcNet, err := net.ParseCIDR(c.VpcCidr)
	if err != nil {
		return []error{fmt.Errorf("vpcCidr %q: %w", c.VpcCidr, err)}
	}
	if len(c.PublicSubnetCidrs) < 2 {
		errs = append(errs, errors.New("at least two publicSubnetCidrs are required"))
	}
	if len(c.PublicSubnetCidrs) != len(c.PrivateSubnetCidrs) {
		errs = append(errs, fmt.Errorf("publicSubnetCidrs (%d) and privateSubnetCidrs (%d) must have the same length",
			len(c.PublicSubnetCidrs), len(c.PrivateSubnetCidrs)))
	}

	seen := map[string]bool{}
	for _, cidr := range append(append([]string{}, c.PublicSubnetCidrs...), c.PrivateSubnetCidrs...) {
		ip, subnet, err := net.ParseCIDR(cidr)
		if err != nil {
			errs = append(errs, fmt.Errorf("subnet cidr %q: %w", cidr, err))
			continue
		}
		if seen[subnet.String()] {
			errs = append(errs, fmt.Errorf("subnet cidr %q is used twice", cidr))
		}
		seen[subnet.String()] = true

		vpcOnes, _ := vpcNet.Mask.Size()
		subOnes, _ := subnet.Mask.Size()
		if !vpcNet.Contains(ip) || subOnes < vpcOnes {
			errs = append(errs, fmt.Errorf("subnet cidr %q is outside vpcCidr %q", cidr, c.VpcCidr))
		}
	}
	return errs
}
