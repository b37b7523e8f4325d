package pkg

import (
	"fmt"

	"github.com/pulumi/pulumi-random/sdk/v4/go/random"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// suffixByteLength gives an 8 character hex suffix.
const suffixByteLength = 4

// Naming derives resource names from the project, the environment and one
// random hex suffix shared by every resource in the stack. The suffix lives
// in stack state, so it is generated on the first apply and reused after.
type Naming struct {
	Project     string
	Environment string
	Suffix      pulumi.StringOutput
}

// NewNaming registers the random suffix for the stack
func NewNaming(ctx *pulumi.Context, project, environment string) (*Naming, error) {
	id, err := random.NewRandomId(ctx, fmt.Sprintf("%s-%s-suffix", project, environment), &random.RandomIdArgs{
		ByteLength: pulumi.Int(suffixByteLength),
	})
	if err != nil {
		return nil, err
	}

	return &Naming{
		Project:     project,
		Environment: environment,
		Suffix:      id.Hex,
	}, nil
}

// Logical returns the Pulumi logical name for a resource kind. Logical names
// stay stable across runs; only physical names carry the suffix.
func (n *Naming) Logical(kind string) string {
	return fmt.Sprintf("%s-%s-%s", n.Project, n.Environment, kind)
}

// Name returns the physical AWS name for a resource kind.
func (n *Naming) Name(kind string) pulumi.StringOutput {
	return pulumi.Sprintf("%s-%s", n.Logical(kind), n.Suffix)
}

// Tags returns the common tag set merged with extra.
func (n *Naming) Tags(extra map[string]string) pulumi.StringMap {
	tags := pulumi.StringMap{
		"Project":     pulumi.String(n.Project),
		"Environment": pulumi.String(n.Environment),
		"ManagedBy":   pulumi.String("pulumi"),
	}
	for k, v := range extra {
		tags[k] = pulumi.String(v)
	}
	return tags
}

// NamedTags is Tags plus a Name tag.
func (n *Naming) NamedTags(kind string, extra map[string]string) pulumi.StringMap {
	tags := n.Tags(extra)
	tags["Name"] = n.Name(kind)
	return tags
}
