// Copyright (c) 2026 EDITD
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package rebalance

import (
	"context"

	"go.uber.org/zap"

	"github.com/EDITD/elasticsearch-rebalancer/src/client"
)

const (
	rebalanceEnableSetting = "cluster.routing.rebalance.enable"
	rebalanceDisabled      = "none"
)

// DisableClusterRebalance turns off the cluster's own automatic rebalancing
// for the duration of a commit, so the cluster does not fight the moves we
// submit. It returns a restore function the caller must defer, so the
// previous value (or the setting's absence) is reinstated on every exit
// path, fatal errors included.
func DisableClusterRebalance(
	ctx context.Context,
	c client.Client,
	logger *zap.Logger,
) (restore func(), err error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	previous, err := c.GetSetting(ctx, rebalanceEnableSetting, "")
	if err != nil {
		return nil, err
	}
	if err := c.SetSetting(ctx, rebalanceEnableSetting, rebalanceDisabled); err != nil {
		return nil, err
	}
	logger.Info("cluster rebalance disabled",
		zap.String("previous", previous))

	return func() {
		logger.Info("restoring cluster rebalance setting",
			zap.String("value", previous))
		// A fresh context: the restore must still run when the run
		// was cancelled or failed.
		if err := c.SetSetting(context.Background(), rebalanceEnableSetting, previous); err != nil {
			logger.Error("failed to restore cluster rebalance setting",
				zap.Error(err))
		}
	}, nil
}
