package pkg

import (
	"encoding/json"
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/cloudwatch"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

type MonitoringResult struct {
	DashboardArn pulumi.StringOutput
	LogGroupArn  pulumi.StringOutput
	LogGroupName pulumi.StringOutput
}

// CreateMonitoring creates the application log group and a CloudWatch
// dashboard over the cluster's Container Insights metrics
func CreateMonitoring(ctx *pulumi.Context, cfg *StackConfig, naming *Naming, clusterName pulumi.StringOutput) (*MonitoringResult, error) {
	logGroup, err := cloudwatch.NewLogGroup(ctx, naming.Logical("app-logs"), &cloudwatch.LogGroupArgs{
		Name:            pulumi.Sprintf("/%s/%s/application-%s", naming.Project, naming.Environment, naming.Suffix),
		RetentionInDays: pulumi.Int(cfg.LogRetentionDays),
		Tags:            naming.NamedTags("app-logs", nil),
	})
	if err != nil {
		return nil, err
	}

	dashboardBody := clusterName.ApplyT(func(name string) (string, error) {
		return dashboardJSON(name, cfg.Region)
	}).(pulumi.StringOutput)

	dashboard, err := cloudwatch.NewDashboard(ctx, naming.Logical("dashboard"), &cloudwatch.DashboardArgs{
		DashboardName: naming.Name("dashboard"),
		DashboardBody: dashboardBody,
	})
	if err != nil {
		return nil, err
	}

	return &MonitoringResult{
		DashboardArn: dashboard.DashboardArn,
		LogGroupArn:  logGroup.Arn,
		LogGroupName: logGroup.Name,
	}, nil
}

type dashboard struct {
	Widgets []widget `json:"widgets"`
}

type widget struct {
	Type       string           `json:"type"`
	X          int              `json:"x"`
	Y          int              `json:"y"`
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	Properties widgetProperties `json:"properties"`
}

type widgetProperties struct {
	Markdown string          `json:"markdown,omitempty"`
	Title    string          `json:"title,omitempty"`
	View     string          `json:"view,omitempty"`
	Stacked  bool            `json:"stacked"`
	Metrics  [][]interface{} `json:"metrics,omitempty"`
	Region   string          `json:"region,omitempty"`
	Period   int             `json:"period,omitempty"`
}

type dashboardMetric struct {
	title  string
	metric string
}

var clusterMetrics = []dashboardMetric{
	{title: "Node CPU Utilization", metric: "node_cpu_utilization"},
	{title: "Node Memory Utilization", metric: "node_memory_utilization"},
	{title: "Running Pods", metric: "cluster_number_of_running_pods"},
	{title: "Pod CPU Utilization", metric: "pod_cpu_utilization"},
	{title: "Pod Memory Utilization", metric: "pod_memory_utilization"},
	{title: "Failed Nodes", metric: "cluster_failed_node_count"},
}

const (
	widgetWidth  = 8
	widgetHeight = 6
	gridWidth    = 24
)

// dashboardJSON lays the cluster metrics out three to a row under a title.
func dashboardJSON(clusterName, region string) (string, error) {
	d := dashboard{
		Widgets: []widget{{
			Type:   "text",
			Width:  gridWidth,
			Height: 1,
			Properties: widgetProperties{
				Markdown: fmt.Sprintf("# %s", clusterName),
			},
		}},
	}

	perRow := gridWidth / widgetWidth
	for i, m := range clusterMetrics {
		d.Widgets = append(d.Widgets, widget{
			Type:   "metric",
			X:      (i % perRow) * widgetWidth,
			Y:      1 + (i/perRow)*widgetHeight,
			Width:  widgetWidth,
			Height: widgetHeight,
			Properties: widgetProperties{
				Title:  m.title,
				View:   "timeSeries",
				Region: region,
				Period: 60,
				Metrics: [][]interface{}{
					{"ContainerInsights", m.metric, "ClusterName", clusterName},
				},
			},
		})
	}

	bytes, err := json.Marshal(d)
	return string(bytes), err
}
