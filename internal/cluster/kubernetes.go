// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	autoscalingv1 "k8s.io/api/autoscaling/v1"

	"github.com/dhanush6701/kubepulse/internal/config"
	"github.com/dhanush6701/kubepulse/internal/models"
)

// KubeClient implements Client on top of client-go.
type KubeClient struct {
	clientset kubernetes.Interface
}

// New builds a KubeClient, preferring in-cluster config and falling back
// to the kubeconfig path (or the default loading rules when empty).
func New(cfg config.ClusterConfig) (*KubeClient, error) {
	restCfg, err := rest.InClusterConfig()
	if err != nil {
		loading := clientcmd.NewDefaultClientConfigLoadingRules()
		if cfg.Kubeconfig != "" {
			loading.ExplicitPath = cfg.Kubeconfig
		}
		restCfg, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			loading, &clientcmd.ConfigOverrides{}).ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("load cluster config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create cluster clientset: %w", err)
	}
	return &KubeClient{clientset: clientset}, nil
}

// NewWithClientset wraps an existing clientset; used by tests.
func NewWithClientset(clientset kubernetes.Interface) *KubeClient {
	return &KubeClient{clientset: clientset}
}

// ListNamespaces returns the names of all namespaces.
func (k *KubeClient) ListNamespaces(ctx context.Context) ([]string, error) {
	list, err := k.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, wrapStatus(err)
	}
	names := make([]string, 0, len(list.Items))
	for _, ns := range list.Items {
		names = append(names, ns.Name)
	}
	return names, nil
}

// ListPods returns dashboard view models for all pods in a namespace.
func (k *KubeClient) ListPods(ctx context.Context, namespace string) ([]models.Pod, error) {
	list, err := k.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, wrapStatus(err)
	}

	pods := make([]models.Pod, 0, len(list.Items))
	for i := range list.Items {
		pods = append(pods, podView(&list.Items[i]))
	}
	return pods, nil
}

func podView(pod *corev1.Pod) models.Pod {
	view := models.Pod{
		Name:       pod.Name,
		Namespace:  pod.Namespace,
		Status:     string(pod.Status.Phase),
		IP:         pod.Status.PodIP,
		Node:       pod.Spec.NodeName,
		Containers: make([]models.Container, 0, len(pod.Spec.Containers)),
	}
	if pod.Status.StartTime != nil {
		t := pod.Status.StartTime.Time
		view.StartTime = &t
	}

	ready := make(map[string]bool, len(pod.Status.ContainerStatuses))
	for _, cs := range pod.Status.ContainerStatuses {
		ready[cs.Name] = cs.Ready
	}
	for _, c := range pod.Spec.Containers {
		view.Containers = append(view.Containers, models.Container{
			Name:  c.Name,
			Image: c.Image,
			Ready: ready[c.Name],
		})
	}
	return view
}

// ListDeployments returns dashboard view models for all deployments in a
// namespace.
func (k *KubeClient) ListDeployments(ctx context.Context, namespace string) ([]models.Deployment, error) {
	list, err := k.clientset.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, wrapStatus(err)
	}

	deps := make([]models.Deployment, 0, len(list.Items))
	for _, d := range list.Items {
		var replicas int32
		if d.Spec.Replicas != nil {
			replicas = *d.Spec.Replicas
		}
		deps = append(deps, models.Deployment{
			Name:              d.Name,
			Namespace:         d.Namespace,
			Replicas:          replicas,
			ReadyReplicas:     d.Status.ReadyReplicas,
			AvailableReplicas: d.Status.AvailableReplicas,
			CreatedAt:         d.CreationTimestamp.Time,
		})
	}
	return deps, nil
}

// ListEvents returns dashboard view models for cluster events in a
// namespace.
func (k *KubeClient) ListEvents(ctx context.Context, namespace string) ([]models.ClusterEvent, error) {
	list, err := k.clientset.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, wrapStatus(err)
	}

	events := make([]models.ClusterEvent, 0, len(list.Items))
	for _, e := range list.Items {
		ev := models.ClusterEvent{
			Type:    e.Type,
			Reason:  e.Reason,
			Message: e.Message,
			Object:  e.InvolvedObject.Kind + "/" + e.InvolvedObject.Name,
			Count:   e.Count,
		}
		if !e.LastTimestamp.IsZero() {
			t := e.LastTimestamp.Time
			ev.LastTimestamp = &t
		}
		events = append(events, ev)
	}
	return events, nil
}

// podMetricsList mirrors the metrics.k8s.io/v1beta1 PodMetricsList wire
// format, reduced to the fields the dashboard renders.
type podMetricsList struct {
	Items []struct {
		Metadata struct {
			Name      string `json:"name"`
			Namespace string `json:"namespace"`
		} `json:"metadata"`
		Containers []struct {
			Name  string            `json:"name"`
			Usage map[string]string `json:"usage"`
		} `json:"containers"`
	} `json:"items"`
}

// ListPodMetrics queries the metrics API group directly. The metrics
// server is optional; callers treat its absence as an empty result.
func (k *KubeClient) ListPodMetrics(ctx context.Context, namespace string) ([]models.PodMetrics, error) {
	raw, err := k.clientset.CoreV1().RESTClient().Get().
		AbsPath("/apis/metrics.k8s.io/v1beta1/namespaces/" + namespace + "/pods").
		DoRaw(ctx)
	if err != nil {
		return nil, wrapStatus(err)
	}

	var list podMetricsList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode pod metrics: %w", err)
	}

	out := make([]models.PodMetrics, 0, len(list.Items))
	for _, item := range list.Items {
		pm := models.PodMetrics{
			Name:       item.Metadata.Name,
			Namespace:  item.Metadata.Namespace,
			Containers: make([]models.ContainerMetrics, 0, len(item.Containers)),
		}
		for _, c := range item.Containers {
			pm.Containers = append(pm.Containers, models.ContainerMetrics{
				Name:  c.Name,
				Usage: c.Usage,
			})
		}
		out = append(out, pm)
	}
	return out, nil
}

// ReadScale reads the scale subresource of a deployment.
func (k *KubeClient) ReadScale(ctx context.Context, workload, namespace string) (*autoscalingv1.Scale, error) {
	scale, err := k.clientset.AppsV1().Deployments(namespace).GetScale(ctx, workload, metav1.GetOptions{})
	if err != nil {
		return nil, wrapStatus(err)
	}
	return scale, nil
}

// ReplaceScale replaces the scale subresource wholesale.
func (k *KubeClient) ReplaceScale(ctx context.Context, workload, namespace string, scale *autoscalingv1.Scale) error {
	_, err := k.clientset.AppsV1().Deployments(namespace).UpdateScale(ctx, workload, scale, metav1.UpdateOptions{})
	return wrapStatus(err)
}

// PatchScale applies a patch to the scale subresource.
func (k *KubeClient) PatchScale(ctx context.Context, workload, namespace string, patch []byte, pt types.PatchType) error {
	_, err := k.clientset.AppsV1().Deployments(namespace).
		Patch(ctx, workload, pt, patch, metav1.PatchOptions{}, "scale")
	return wrapStatus(err)
}

// PatchWorkload applies a patch to the workload object itself.
func (k *KubeClient) PatchWorkload(ctx context.Context, workload, namespace string, patch []byte, pt types.PatchType) error {
	_, err := k.clientset.AppsV1().Deployments(namespace).
		Patch(ctx, workload, pt, patch, metav1.PatchOptions{})
	return wrapStatus(err)
}

// DeletePod deletes a pod; with foreground=true it uses grace period 0 and
// foreground propagation, matching the dashboard's force-delete action.
func (k *KubeClient) DeletePod(ctx context.Context, name, namespace string, foreground bool) error {
	opts := metav1.DeleteOptions{}
	if foreground {
		var grace int64
		policy := metav1.DeletePropagationForeground
		opts.GracePeriodSeconds = &grace
		opts.PropagationPolicy = &policy
	}
	return wrapStatus(k.clientset.CoreV1().Pods(namespace).Delete(ctx, name, opts))
}

// FollowLogs opens a follow-mode log stream with a bounded backlog.
func (k *KubeClient) FollowLogs(ctx context.Context, namespace, pod, container string, tailLines int64) (io.ReadCloser, error) {
	opts := &corev1.PodLogOptions{
		Container:  container,
		Follow:     true,
		TailLines:  &tailLines,
		Timestamps: true,
	}
	stream, err := k.clientset.CoreV1().Pods(namespace).GetLogs(pod, opts).Stream(ctx)
	if err != nil {
		return nil, wrapStatus(err)
	}
	return stream, nil
}

// Reachable asks the API server for its version.
func (k *KubeClient) Reachable(ctx context.Context) error {
	_, err := k.clientset.Discovery().ServerVersion()
	return wrapStatus(err)
}

// wrapStatus converts client-go status errors into *StatusError so callers
// can classify on the code without importing apimachinery.
func wrapStatus(err error) error {
	if err == nil {
		return nil
	}
	var status apierrors.APIStatus
	if errors.As(err, &status) {
		return &StatusError{
			Code:    int(status.Status().Code),
			Message: status.Status().Message,
		}
	}
	return err
}
