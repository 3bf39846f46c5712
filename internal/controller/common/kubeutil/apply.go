// Copyright (C) INFINI Labs & INFINI LIMITED.
//
// The INFINI Spring Boot Operator is offered under the GNU Affero General Public License v3.0
// and as commercial software.
//
// For commercial licensing, contact us at:
//   - Website: infinilabs.com
//   - Email: hello@infini.ltd
//
// Open Source licensed under AGPL V3:
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// internal/controller/common/kubeutil/apply.go
// Package kubeutil provides utility functions for interacting with Kubernetes resources.
package kubeutil

import (
	"context"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// ApplyObject idempotently applies the desired state of a Kubernetes object
// using Server-Side Apply. It creates the object if it doesn't exist, or
// patches it based on the desired state, managing fields via the specified
// fieldManager. The object must carry Kind, APIVersion, Name and Namespace.
func ApplyObject(ctx context.Context, k8sClient client.Client, obj client.Object, fieldManager string) error {
	gvk := obj.GetObjectKind().GroupVersionKind()
	objKey := client.ObjectKeyFromObject(obj)

	if gvk.Kind == "" || gvk.Version == "" || objKey.Name == "" || objKey.Namespace == "" {
		err := fmt.Errorf("object is missing essential GVK or Name/Namespace for apply (GVK: %s, NsName: %s)", gvk.String(), objKey.String())
		log.FromContext(ctx).Error(err, "Cannot apply object without complete metadata")
		return err
	}

	logger := log.FromContext(ctx).WithValues(
		"kind", gvk.Kind,
		"name", objKey.Name,
		"namespace", objKey.Namespace,
		"fieldManager", fieldManager,
	)

	// FieldOwner identifies who manages the applied fields. ForceOwnership
	// takes over fields previously set by manual edits or other managers.
	patchOpts := []client.PatchOption{
		client.FieldOwner(fieldManager),
		client.ForceOwnership,
	}

	if err := k8sClient.Patch(ctx, obj, client.Apply, patchOpts...); err != nil {
		logger.V(1).Error(err, "Patch call failed")
		return fmt.Errorf("failed to apply %s %s: %w", gvk.Kind, objKey.String(), err)
	}

	logger.V(1).Info("Applied object using Server-Side Apply")
	return nil
}

// BuildObjectResultMapKey creates a unique string key identifying an object
// by its GVK, namespace and name.
func BuildObjectResultMapKey(obj client.Object) string {
	if obj == nil {
		return ""
	}
	gvk := obj.GetObjectKind().GroupVersionKind()
	objKey := client.ObjectKeyFromObject(obj)
	return gvk.String() + "/" + objKey.String()
}
