package pkg

import (
	"fmt"

	"github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes"
	"github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/apiextensions"
	helmv3 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/helm/v3"
	metav1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/meta/v1"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const (
	monitoringNamespace   = "monitoring"
	prometheusStackChart  = "kube-prometheus-stack"
	prometheusStackRepo   = "https://prometheus-community.github.io/helm-charts"
	prometheusStackVer    = "65.1.1"
	prometheusReleaseName = "kube-prometheus-stack"
	metricsPath           = "/prometheus"
)

// AlertRule is one Prometheus alerting rule.
type AlertRule struct {
	Alert       string
	Expr        string
	For         string
	Severity    string
	Summary     string
	Description string
}

type PrometheusResult struct {
	Release        *helmv3.Release
	ServiceMonitor *apiextensions.CustomResource
	Rules          *apiextensions.CustomResource
}

// DeployPrometheus installs the Prometheus Operator stack and points it at
// the application: a ServiceMonitor scraping the app's metrics endpoint and
// a PrometheusRule with the app's alerts
func DeployPrometheus(ctx *pulumi.Context, provider pulumi.ProviderResource, app *AppResult) (*PrometheusResult, error) {
	opts := []pulumi.ResourceOption{pulumi.Provider(provider)}

	release, err := helmv3.NewRelease(ctx, prometheusReleaseName, &helmv3.ReleaseArgs{
		Name:            pulumi.String(prometheusReleaseName),
		Chart:           pulumi.String(prometheusStackChart),
		Version:         pulumi.String(prometheusStackVer),
		Namespace:       pulumi.String(monitoringNamespace),
		CreateNamespace: pulumi.Bool(true),
		RepositoryOpts: &helmv3.RepositoryOptsArgs{
			Repo: pulumi.String(prometheusStackRepo),
		},
		Values: pulumi.Map{
			"prometheus": pulumi.Map{
				"prometheusSpec": pulumi.Map{
					// Pick up ServiceMonitors and rules from every namespace,
					// not only those labelled with this release.
					"serviceMonitorSelectorNilUsesHelmValues": pulumi.Bool(false),
					"ruleSelectorNilUsesHelmValues":           pulumi.Bool(false),
					"retention":                               pulumi.String("7d"),
				},
			},
			"grafana": pulumi.Map{
				"enabled": pulumi.Bool(true),
			},
			"alertmanager": pulumi.Map{
				"enabled": pulumi.Bool(true),
			},
		},
	}, opts...)
	if err != nil {
		return nil, err
	}

	crdOpts := append(opts, pulumi.DependsOn([]pulumi.Resource{release, app.Service}))

	monitor, err := apiextensions.NewCustomResource(ctx, app.ServiceName+"-monitor", &apiextensions.CustomResourceArgs{
		ApiVersion: pulumi.String("monitoring.coreos.com/v1"),
		Kind:       pulumi.String("ServiceMonitor"),
		Metadata: &metav1.ObjectMetaArgs{
			Name:      pulumi.String(app.ServiceName),
			Namespace: pulumi.String(app.Namespace),
			Labels:    pulumi.ToStringMap(app.Labels),
		},
		OtherFields: kubernetes.UntypedArgs{
			"spec": pulumi.Map{
				"selector": pulumi.Map{
					"matchLabels": pulumi.ToStringMap(app.Labels),
				},
				"endpoints": pulumi.Array{
					pulumi.Map{
						"port":     pulumi.String(httpPortName),
						"path":     pulumi.String(metricsPath),
						"interval": pulumi.String("30s"),
					},
				},
			},
		},
	}, crdOpts...)
	if err != nil {
		return nil, err
	}

	rules, err := apiextensions.NewCustomResource(ctx, app.ServiceName+"-rules", &apiextensions.CustomResourceArgs{
		ApiVersion: pulumi.String("monitoring.coreos.com/v1"),
		Kind:       pulumi.String("PrometheusRule"),
		Metadata: &metav1.ObjectMetaArgs{
			Name:      pulumi.String(app.ServiceName),
			Namespace: pulumi.String(app.Namespace),
			Labels:    pulumi.ToStringMap(app.Labels),
		},
		OtherFields: kubernetes.UntypedArgs{
			"spec": pulumi.Map{
				"groups": pulumi.Array{
					pulumi.Map{
						"name":  pulumi.String(app.ServiceName + ".rules"),
						"rules": alertRulesArray(AppAlertRules(app.Namespace, app.ServiceName)),
					},
				},
			},
		},
	}, crdOpts...)
	if err != nil {
		return nil, err
	}

	return &PrometheusResult{
		Release:        release,
		ServiceMonitor: monitor,
		Rules:          rules,
	}, nil
}

// AppAlertRules returns the alerts for the app in namespace. The CPU,
// memory and disk thresholds match the alert flags the app reports itself.
func AppAlertRules(namespace, service string) []AlertRule {
	selector := fmt.Sprintf(`namespace=%q,service=%q`, namespace, service)
	return []AlertRule{
		{
			Alert:       "CloudForgeAppDown",
			Expr:        fmt.Sprintf(`up{%s} == 0`, selector),
			For:         "1m",
			Severity:    "critical",
			Summary:     "Application instance is down",
			Description: "{{ $labels.pod }} has not been scraped successfully for 1 minute.",
		},
		{
			Alert:       "CloudForgeHighErrorRate",
			Expr:        fmt.Sprintf(`sum(rate(http_requests_total{%s,code=~"5.."}[5m])) / sum(rate(http_requests_total{%s}[5m])) > 0.05`, selector, selector),
			For:         "5m",
			Severity:    "warning",
			Summary:     "More than 5% of requests fail",
			Description: "The 5xx ratio has been above 5% for 5 minutes.",
		},
		{
			Alert:       "CloudForgeHighCPU",
			Expr:        fmt.Sprintf(`app_cpu_usage_ratio{%s} > 0.8`, selector),
			For:         "5m",
			Severity:    "warning",
			Summary:     "CPU usage above 80%",
			Description: "{{ $labels.pod }} reports CPU usage above 80%.",
		},
		{
			Alert:       "CloudForgeHighMemory",
			Expr:        fmt.Sprintf(`app_memory_usage_ratio{%s} > 0.8`, selector),
			For:         "5m",
			Severity:    "warning",
			Summary:     "Memory usage above 80%",
			Description: "{{ $labels.pod }} reports memory usage above 80%.",
		},
		{
			Alert:       "CloudForgeDiskFull",
			Expr:        fmt.Sprintf(`container_fs_usage_bytes{%s} / container_fs_limit_bytes{%s} > 0.8`, selector, selector),
			For:         "10m",
			Severity:    "warning",
			Summary:     "Filesystem usage above 80%",
			Description: "{{ $labels.pod }} has used more than 80% of its filesystem.",
		},
	}
}

func alertRulesArray(rules []AlertRule) pulumi.Array {
	out := pulumi.Array{}
	for _, r := range rules {
		out = append(out, pulumi.Map{
			"alert": pulumi.String(r.Alert),
			"expr":  pulumi.String(r.Expr),
			"for":   pulumi.String(r.For),
			"labels": pulumi.StringMap{
				"severity": pulumi.String(r.Severity),
			},
			"annotations": pulumi.StringMap{
				"summary":     pulumi.String(r.Summary),
				"description": pulumi.String(r.Description),
			},
		})
	}
	return out
}
