package settle

import "github.com/xraph/settle/id"

// ID is the primary identifier type for all settle entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
