package storage

// Paths are the object keys of one image's two renditions.
type Paths struct {
	Preview string
	Full    string
}

// PlanPaths maps an owner and a generated filename to object keys. The owner
// id is always the first segment, so keys never overlap across users.
func PlanPaths(ownerID, filename string) Paths {
	return Paths{
		Preview: ownerID + "/previews/" + filename,
		Full:    ownerID + "/full/" + filename,
	}
}

func (p Paths) List() []string {
	return []string{p.Preview, p.Full}
}
