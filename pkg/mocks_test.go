package pkg

import (
	"strings"
	"sync"
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/require"
)

const (
	testProject = "eks-cloudforge"
	testStack   = "dev"
	testSuffix  = "0a1b2c3d"
	createdVpc  = "vpc-created"
)

type registered struct {
	Type   string
	Name   string
	Inputs resource.PropertyMap
	// Deps are the URNs the resource depends on.
	Deps []string
}

// mocks records every registered resource and answers the AWS data source
// calls the components make.
type mocks struct {
	mu        sync.Mutex
	resources []registered
	calls     []string
	subnets   map[string][]string
}

func newMocks() *mocks {
	return &mocks{
		subnets: map[string][]string{
			elbRoleTag:         {"subnet-pub-a", "subnet-pub-b"},
			internalELBRoleTag: {"subnet-priv-a", "subnet-priv-b"},
		},
	}
}

func (m *mocks) NewResource(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error) {
	m.mu.Lock()
	m.resources = append(m.resources, registered{
		Type:   args.TypeToken,
		Name:   args.Name,
		Inputs: args.Inputs,
		Deps:   args.RegisterRPC.GetDependencies(),
	})
	m.mu.Unlock()

	outputs := args.Inputs.Copy()
	id := args.Name + "_id"
	switch args.TypeToken {
	case "random:index/randomId:RandomId":
		outputs["hex"] = resource.NewStringProperty(testSuffix)
	case "aws:ec2/vpc:Vpc":
		id = createdVpc
	case "aws:ecr/repository:Repository":
		outputs["repositoryUrl"] = resource.NewStringProperty("123456789012.dkr.ecr.us-west-2.amazonaws.com/" + args.Name)
	case "aws:cloudwatch/dashboard:Dashboard":
		outputs["dashboardArn"] = resource.NewStringProperty("arn:aws:cloudwatch::123456789012:dashboard/" + args.Name)
	}
	return id, outputs, nil
}

func (m *mocks) Call(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
	m.mu.Lock()
	m.calls = append(m.calls, args.Token)
	m.mu.Unlock()

	switch args.Token {
	case "aws:index/getAvailabilityZones:getAvailabilityZones":
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"names": []interface{}{"us-west-2a", "us-west-2b", "us-west-2c"},
		}), nil
	case "aws:ec2/getVpc:getVpc":
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"id":        args.Args["id"].StringValue(),
			"cidrBlock": "172.31.0.0/16",
		}), nil
	case "aws:ec2/getSubnets:getSubnets":
		var ids []interface{}
		if tags, ok := args.Args["tags"]; ok && tags.IsObject() {
			for tag, subnets := range m.subnets {
				if tags.ObjectValue().HasValue(resource.PropertyKey(tag)) {
					for _, s := range subnets {
						ids = append(ids, s)
					}
				}
			}
		}
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"id":  "subnets",
			"ids": ids,
		}), nil
	}
	return resource.PropertyMap{}, nil
}

func (m *mocks) ofType(typ string) []registered {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []registered
	for _, r := range m.resources {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

func (m *mocks) named(name string) (registered, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.resources {
		if r.Name == name {
			return r, true
		}
	}
	return registered{}, false
}

func (m *mocks) called(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c == token {
			return true
		}
	}
	return false
}

// dependsOn reports whether r lists the resource named name among its
// dependencies.
func (r registered) dependsOn(name string) bool {
	for _, urn := range r.Deps {
		if strings.HasSuffix(urn, "::"+name) {
			return true
		}
	}
	return false
}

func runWithMocks(t *testing.T, m *mocks, fn pulumi.RunFunc) {
	t.Helper()
	err := pulumi.RunErr(fn, pulumi.WithMocks(testProject, testStack, m))
	require.NoError(t, err)
}

// await blocks until o resolves and returns its value. It must be called
// inside the run function.
func await(o pulumi.StringOutput) string {
	var (
		wg  sync.WaitGroup
		got string
	)
	wg.Add(1)
	o.ApplyT(func(v string) string {
		got = v
		wg.Done()
		return v
	})
	wg.Wait()
	return got
}

// unwrap strips the secret marker from a property value.
func unwrap(v resource.PropertyValue) resource.PropertyValue {
	for v.IsSecret() {
		v = v.SecretValue().Element
	}
	return v
}

// stringMap reads an object property as a string map; a missing property is
// an empty map.
func stringMap(m resource.PropertyMap, key string) map[string]string {
	out := map[string]string{}
	v, ok := m[resource.PropertyKey(key)]
	if !ok {
		return out
	}
	v = unwrap(v)
	if !v.IsObject() {
		return out
	}
	for k, val := range v.ObjectValue() {
		out[string(k)] = unwrap(val).StringValue()
	}
	return out
}

func object(m resource.PropertyMap, path ...string) resource.PropertyMap {
	cur := m
	for _, p := range path {
		v, ok := cur[resource.PropertyKey(p)]
		if !ok {
			return resource.PropertyMap{}
		}
		v = unwrap(v)
		if !v.IsObject() {
			return resource.PropertyMap{}
		}
		cur = v.ObjectValue()
	}
	return cur
}
