// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metadata

import (
	"fmt"

	"github.com/blinklabs-io/tollgate/database/models"
	"github.com/blinklabs-io/tollgate/database/plugin"
	"github.com/blinklabs-io/tollgate/database/types"
	"gorm.io/gorm"

	// Register metadata plugins
	_ "github.com/blinklabs-io/tollgate/database/plugin/metadata/mysql"
	_ "github.com/blinklabs-io/tollgate/database/plugin/metadata/postgres"
	_ "github.com/blinklabs-io/tollgate/database/plugin/metadata/sqlite"
)

type MetadataStore interface {
	plugin.Plugin

	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Transaction() types.Txn

	// Proposals
	GetProposal(uint64, types.Txn) (*models.Proposal, error)
	GetProposals(models.ProposalFilter, types.Txn) ([]models.Proposal, error)
	SetProposal(*models.Proposal, types.Txn) error
	AddProposalApproval(*models.ProposalApproval, types.Txn) (bool, error)
	GetProposalApprovals(uint64, types.Txn) ([]models.ProposalApproval, error)

	// Proxies
	AddProxyHistory(*models.ProxyHistory, types.Txn) error
	GetProxyHistory(string, types.Txn) ([]models.ProxyHistory, error)
}

// New returns the started metadata plugin selected by name
func New(
	pluginName string,
	cfg plugin.PluginConfig,
) (MetadataStore, error) {
	p, err := plugin.StartPlugin(plugin.PluginTypeMetadata, pluginName, cfg)
	if err != nil {
		return nil, err
	}
	metadataStore, ok := p.(MetadataStore)
	if !ok {
		_ = p.Stop()
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return metadataStore, nil
}
