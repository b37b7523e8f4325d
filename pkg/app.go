package pkg

import (
	"eks-cloudforge/pkg/chart"

	appsv1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/apps/v1"
	autoscalingv2 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/autoscaling/v2"
	corev1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/core/v1"
	metav1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/meta/v1"
	networkingv1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/networking/v1"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const httpPortName = "http"

// AppArgs describes one release of the application.
type AppArgs struct {
	Release     string
	Namespace   string
	Values      chart.Values
	Image       pulumi.StringPtrInput
	Region      string
	ClusterName pulumi.StringPtrInput
}

type AppResult struct {
	Namespace   string
	ServiceName string
	Labels      map[string]string
	Service     *corev1.Service
	Deployment  *appsv1.Deployment
	// Secret is nil when secrets are disabled.
	Secret *corev1.Secret
}

// DeployApp creates the Kubernetes objects of the application release. The
// Secret, HorizontalPodAutoscaler and Ingress only exist when enabled in
// the values.
func DeployApp(ctx *pulumi.Context, provider pulumi.ProviderResource, args AppArgs) (*AppResult, error) {
	values := args.Values
	name := values.FullName(args.Release)
	labels := values.Labels(args.Release)
	opts := []pulumi.ResourceOption{pulumi.Provider(provider)}

	ns, err := corev1.NewNamespace(ctx, name+"-ns", &corev1.NamespaceArgs{
		Metadata: &metav1.ObjectMetaArgs{
			Name:   pulumi.String(args.Namespace),
			Labels: pulumi.ToStringMap(labels),
		},
	}, opts...)
	if err != nil {
		return nil, err
	}
	opts = append(opts, pulumi.DependsOn([]pulumi.Resource{ns}))

	meta := func() *metav1.ObjectMetaArgs {
		return &metav1.ObjectMetaArgs{
			Name:      pulumi.String(name),
			Namespace: pulumi.String(args.Namespace),
			Labels:    pulumi.ToStringMap(labels),
		}
	}

	sa, err := corev1.NewServiceAccount(ctx, name+"-sa", &corev1.ServiceAccountArgs{
		Metadata: meta(),
	}, opts...)
	if err != nil {
		return nil, err
	}

	config, err := corev1.NewConfigMap(ctx, name+"-config", &corev1.ConfigMapArgs{
		Metadata: meta(),
		Data:     pulumi.ToStringMap(values.Env),
	}, opts...)
	if err != nil {
		return nil, err
	}

	envFrom := corev1.EnvFromSourceArray{
		corev1.EnvFromSourceArgs{
			ConfigMapRef: &corev1.ConfigMapEnvSourceArgs{Name: pulumi.String(name)},
		},
	}
	podDeps := []pulumi.Resource{sa, config}

	var secret *corev1.Secret
	if values.SecretEnabled() {
		secret, err = corev1.NewSecret(ctx, name+"-secret", &corev1.SecretArgs{
			Metadata:   meta(),
			Type:       pulumi.String("Opaque"),
			StringData: pulumi.ToStringMap(values.SecretData()),
		}, opts...)
		if err != nil {
			return nil, err
		}
		envFrom = append(envFrom, corev1.EnvFromSourceArgs{
			SecretRef: &corev1.SecretEnvSourceArgs{Name: pulumi.String(name)},
		})
		podDeps = append(podDeps, secret)
	}

	spec := &appsv1.DeploymentSpecArgs{
		Selector: &metav1.LabelSelectorArgs{
			MatchLabels: pulumi.ToStringMap(values.SelectorLabels(args.Release)),
		},
		Template: &corev1.PodTemplateSpecArgs{
			Metadata: &metav1.ObjectMetaArgs{
				Labels:      pulumi.ToStringMap(labels),
				Annotations: pulumi.ToStringMap(values.PodAnnotations),
			},
			Spec: &corev1.PodSpecArgs{
				ServiceAccountName: pulumi.String(name),
				NodeSelector:       pulumi.ToStringMap(values.NodeSelector),
				Containers: corev1.ContainerArray{
					corev1.ContainerArgs{
						Name:            pulumi.String(chart.AppName),
						Image:           args.Image,
						ImagePullPolicy: pulumi.String(values.Image.PullPolicy),
						Ports: corev1.ContainerPortArray{
							corev1.ContainerPortArgs{
								Name:          pulumi.String(httpPortName),
								ContainerPort: pulumi.Int(values.ContainerPort()),
								Protocol:      pulumi.String("TCP"),
							},
						},
						Env:            podEnv(args, values),
						EnvFrom:        envFrom,
						Resources:      resourceRequirements(values.ResourceRequirements()),
						LivenessProbe:  httpProbe(values.Liveness()),
						ReadinessProbe: httpProbe(values.Readiness()),
					},
				},
			},
		},
	}
	// The autoscaler owns the replica count when it is enabled
	if !values.Autoscaling.Enabled {
		spec.Replicas = pulumi.Int(values.ReplicaCount)
	}

	deployment, err := appsv1.NewDeployment(ctx, name, &appsv1.DeploymentArgs{
		Metadata: meta(),
		Spec:     spec,
	}, append(opts, pulumi.DependsOn(podDeps))...)
	if err != nil {
		return nil, err
	}

	service, err := corev1.NewService(ctx, name+"-svc", &corev1.ServiceArgs{
		Metadata: meta(),
		Spec: &corev1.ServiceSpecArgs{
			Type:     pulumi.String(values.Service.Type),
			Selector: pulumi.ToStringMap(values.SelectorLabels(args.Release)),
			Ports: corev1.ServicePortArray{
				corev1.ServicePortArgs{
					Name:       pulumi.String(httpPortName),
					Port:       pulumi.Int(values.Service.Port),
					TargetPort: pulumi.String(httpPortName),
					Protocol:   pulumi.String("TCP"),
				},
			},
		},
	}, opts...)
	if err != nil {
		return nil, err
	}

	if values.Autoscaling.Enabled {
		if err := createAutoscaler(ctx, name, meta(), values.Autoscaling, append(opts, pulumi.DependsOn([]pulumi.Resource{deployment}))); err != nil {
			return nil, err
		}
	}

	if values.Ingress.Enabled {
		if err := createIngress(ctx, name, args.Namespace, labels, values, append(opts, pulumi.DependsOn([]pulumi.Resource{service}))); err != nil {
			return nil, err
		}
	}

	return &AppResult{
		Namespace:   args.Namespace,
		ServiceName: name,
		Labels:      labels,
		Service:     service,
		Deployment:  deployment,
		Secret:      secret,
	}, nil
}

func podEnv(args AppArgs, values chart.Values) corev1.EnvVarArray {
	fieldRef := func(path string) *corev1.EnvVarSourceArgs {
		return &corev1.EnvVarSourceArgs{
			FieldRef: &corev1.ObjectFieldSelectorArgs{FieldPath: pulumi.String(path)},
		}
	}
	env := corev1.EnvVarArray{
		corev1.EnvVarArgs{Name: pulumi.String("PORT"), Value: pulumi.Sprintf("%d", values.ContainerPort())},
		corev1.EnvVarArgs{Name: pulumi.String("AWS_REGION"), Value: pulumi.String(args.Region)},
		corev1.EnvVarArgs{Name: pulumi.String("POD_NAME"), ValueFrom: fieldRef("metadata.name")},
		corev1.EnvVarArgs{Name: pulumi.String("POD_NAMESPACE"), ValueFrom: fieldRef("metadata.namespace")},
	}
	if args.ClusterName != nil {
		env = append(env, corev1.EnvVarArgs{Name: pulumi.String("EKS_CLUSTER_NAME"), Value: args.ClusterName})
	}
	return env
}

func resourceList(l chart.ResourceList) pulumi.StringMap {
	m := pulumi.StringMap{}
	if l.CPU != "" {
		m["cpu"] = pulumi.String(l.CPU)
	}
	if l.Memory != "" {
		m["memory"] = pulumi.String(l.Memory)
	}
	return m
}

func resourceRequirements(r chart.Resources) *corev1.ResourceRequirementsArgs {
	return &corev1.ResourceRequirementsArgs{
		Limits:   resourceList(r.Limits),
		Requests: resourceList(r.Requests),
	}
}

func httpProbe(p chart.Probe) *corev1.ProbeArgs {
	return &corev1.ProbeArgs{
		HttpGet: &corev1.HTTPGetActionArgs{
			Path: pulumi.String(p.Path),
			Port: pulumi.Int(p.Port),
		},
		InitialDelaySeconds: pulumi.Int(p.InitialDelaySeconds),
		PeriodSeconds:       pulumi.Int(p.PeriodSeconds),
		TimeoutSeconds:      pulumi.Int(p.TimeoutSeconds),
		FailureThreshold:    pulumi.Int(p.FailureThreshold),
	}
}

func createAutoscaler(ctx *pulumi.Context, name string, meta *metav1.ObjectMetaArgs, a chart.Autoscaling, opts []pulumi.ResourceOption) error {
	target := func(resource string, pct int) autoscalingv2.MetricSpecArgs {
		return autoscalingv2.MetricSpecArgs{
			Type: pulumi.String("Resource"),
			Resource: &autoscalingv2.ResourceMetricSourceArgs{
				Name: pulumi.String(resource),
				Target: autoscalingv2.MetricTargetArgs{
					Type:               pulumi.String("Utilization"),
					AverageUtilization: pulumi.Int(pct),
				},
			},
		}
	}

	metrics := autoscalingv2.MetricSpecArray{}
	if a.TargetCPUUtilizationPercentage > 0 {
		metrics = append(metrics, target("cpu", a.TargetCPUUtilizationPercentage))
	}
	if a.TargetMemoryUtilizationPercentage > 0 {
		metrics = append(metrics, target("memory", a.TargetMemoryUtilizationPercentage))
	}

	_, err := autoscalingv2.NewHorizontalPodAutoscaler(ctx, name+"-hpa", &autoscalingv2.HorizontalPodAutoscalerArgs{
		Metadata: meta,
		Spec: &autoscalingv2.HorizontalPodAutoscalerSpecArgs{
			ScaleTargetRef: autoscalingv2.CrossVersionObjectReferenceArgs{
				ApiVersion: pulumi.String("apps/v1"),
				Kind:       pulumi.String("Deployment"),
				Name:       pulumi.String(name),
			},
			MinReplicas: pulumi.Int(a.MinReplicas),
			MaxReplicas: pulumi.Int(a.MaxReplicas),
			Metrics:     metrics,
		},
	}, opts...)
	return err
}

func createIngress(ctx *pulumi.Context, name, namespace string, labels map[string]string, values chart.Values, opts []pulumi.ResourceOption) error {
	in := values.Ingress
	spec := &networkingv1.IngressSpecArgs{
		Rules: networkingv1.IngressRuleArray{
			networkingv1.IngressRuleArgs{
				Host: pulumi.String(in.Host),
				Http: &networkingv1.HTTPIngressRuleValueArgs{
					Paths: networkingv1.HTTPIngressPathArray{
						networkingv1.HTTPIngressPathArgs{
							Path:     pulumi.String(in.Path),
							PathType: pulumi.String("Prefix"),
							Backend: networkingv1.IngressBackendArgs{
								Service: &networkingv1.IngressServiceBackendArgs{
									Name: pulumi.String(name),
									Port: &networkingv1.ServiceBackendPortArgs{
										Name: pulumi.String(httpPortName),
									},
								},
							},
						},
					},
				},
			},
		},
	}
	if in.ClassName != "" {
		spec.IngressClassName = pulumi.String(in.ClassName)
	}
	if in.TLSSecretName != "" {
		spec.Tls = networkingv1.IngressTLSArray{
			networkingv1.IngressTLSArgs{
				Hosts:      pulumi.StringArray{pulumi.String(in.Host)},
				SecretName: pulumi.String(in.TLSSecretName),
			},
		}
	}

	_, err := networkingv1.NewIngress(ctx, name+"-ingress", &networkingv1.IngressArgs{
		Metadata: &metav1.ObjectMetaArgs{
			Name:        pulumi.String(name),
			Namespace:   pulumi.String(namespace),
			Labels:      pulumi.ToStringMap(labels),
			Annotations: pulumi.ToStringMap(in.Annotations),
		},
		Spec: spec,
	}, opts...)
	return err
}
