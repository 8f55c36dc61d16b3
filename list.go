package flux

// ListMeta is the paging envelope every list response wraps its data in.
type ListMeta struct {
	Object  string `json:"object"`
	HasMore bool   `json:"has_more"`
	URL     string `json:"url"`
}

// GetListMeta satisfies ListContainer for any list type embedding ListMeta.
func (l *ListMeta) GetListMeta() *ListMeta {
	return l
}

// ListContainer is implemented by every list response type.
type ListContainer interface {
	GetListMeta() *ListMeta
}
