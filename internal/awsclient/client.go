// Package awsclient wraps the AWS APIs the deployment commands call
// directly: caller identity, registry login and cluster lookup.
package awsclient

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/ratelimit"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

type STSAPI interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

type ECRAPI interface {
	GetAuthorizationToken(ctx context.Context, in *ecr.GetAuthorizationTokenInput, optFns ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error)
}

type EKSAPI interface {
	DescribeCluster(ctx context.Context, in *eks.DescribeClusterInput, optFns ...func(*eks.Options)) (*eks.DescribeClusterOutput, error)
}

type Client struct {
	sts    STSAPI
	ecr    ECRAPI
	eks    EKSAPI
	region string
}

func newRetryer() aws.Retryer {
	return retry.NewStandard(func(o *retry.StandardOptions) {
		o.MaxAttempts = 5
		o.MaxBackoff = 20 * time.Second
		o.Backoff = retry.NewExponentialJitterBackoff(o.MaxBackoff)
		o.RateLimiter = ratelimit.None
	})
}

// New loads the default credential chain for region.
func New(ctx context.Context, region string) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	retryer := newRetryer()
	return &Client{
		sts:    sts.NewFromConfig(cfg, func(o *sts.Options) { o.Retryer = retryer }),
		ecr:    ecr.NewFromConfig(cfg, func(o *ecr.Options) { o.Retryer = retryer }),
		eks:    eks.NewFromConfig(cfg, func(o *eks.Options) { o.Retryer = retryer }),
		region: region,
	}, nil
}

// NewWithAPIs builds a Client over existing API implementations.
func NewWithAPIs(stsAPI STSAPI, ecrAPI ECRAPI, eksAPI EKSAPI, region string) *Client {
	return &Client{sts: stsAPI, ecr: ecrAPI, eks: eksAPI, region: region}
}

func (c *Client) Region() string {
	return c.region
}

type Identity struct {
	Account string
	Arn     string
	UserID  string
}

func (c *Client) CallerIdentity(ctx context.Context) (Identity, error) {
	out, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("aws credentials are not usable: %w", err)
	}
	return Identity{
		Account: aws.ToString(out.Account),
		Arn:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
	}, nil
}

// RegistryAuth is a docker login for the account's ECR registry.
type RegistryAuth struct {
	Username string
	Password string
	Endpoint string
}

// Host is the registry endpoint without its scheme, as docker expects it.
func (r RegistryAuth) Host() string {
	return strings.TrimPrefix(strings.TrimPrefix(r.Endpoint, "https://"), "http://")
}

func (c *Client) RegistryAuth(ctx context.Context) (RegistryAuth, error) {
	out, err := c.ecr.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return RegistryAuth{}, fmt.Errorf("getting ecr token: %w", err)
	}
	if len(out.AuthorizationData) == 0 {
		return RegistryAuth{}, errors.New("ecr returned no authorization data")
	}
	data := out.AuthorizationData[0]
	return decodeToken(aws.ToString(data.AuthorizationToken), aws.ToString(data.ProxyEndpoint))
}

func decodeToken(token, endpoint string) (RegistryAuth, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return RegistryAuth{}, fmt.Errorf("decoding ecr token: %w", err)
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok || user == "" || pass == "" {
		return RegistryAuth{}, errors.New("ecr token is not user:password")
	}
	return RegistryAuth{Username: user, Password: pass, Endpoint: endpoint}, nil
}

type Cluster struct {
	Name                 string
	Arn                  string
	Endpoint             string
	CertificateAuthority string
	Status               string
	Version              string
}

func (c *Client) DescribeCluster(ctx context.Context, name string) (Cluster, error) {
	out, err := c.eks.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: aws.String(name)})
	if err != nil {
		return Cluster{}, fmt.Errorf("describing cluster %s: %w", name, err)
	}
	if out.Cluster == nil {
		return Cluster{}, fmt.Errorf("cluster %s not found", name)
	}
	cl := out.Cluster
	cluster := Cluster{
		Name:     aws.ToString(cl.Name),
		Arn:      aws.ToString(cl.Arn),
		Endpoint: aws.ToString(cl.Endpoint),
		Status:   string(cl.Status),
		Version:  aws.ToString(cl.Version),
	}
	if cl.CertificateAuthority != nil {
		cluster.CertificateAuthority = aws.ToString(cl.CertificateAuthority.Data)
	}
	return cluster, nil
}
