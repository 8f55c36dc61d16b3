package flux

import "reflect"

// Query fetches a single page for an Iter. The passed ListParams carry the
// cursor for the page being requested.
type Query func(p *ListParams) ([]interface{}, ListMeta, error)

// Iter walks a cursor-paged list endpoint. Pages are fetched lazily: the
// next one is requested only once the current page is drained and the
// gateway reported has_more. Callers loop with Next, read Current and check
// Err afterwards.
type Iter struct {
	query      Query
	listParams ListParams
	values     []interface{}
	meta       ListMeta
	cur        interface{}
	err        error
}

// GetIter starts an iterator by fetching the first page.
func GetIter(p *ListParams, query Query) *Iter {
	iter := &Iter{query: query}
	if p != nil {
		iter.listParams = *p
	}
	iter.values, iter.meta, iter.err = iter.query(&iter.listParams)
	return iter
}

// Next advances to the following element, fetching the next page when
// needed. It returns false once the list is exhausted or a page fetch
// failed.
func (it *Iter) Next() bool {
	if it.err != nil {
		return false
	}
	if len(it.values) == 0 && it.meta.HasMore && it.cur != nil {
		// forward cursor only; ending_before callers page manually
		it.listParams.StartingAfter = listItemID(it.cur)
		it.values, it.meta, it.err = it.query(&it.listParams)
		if it.err != nil {
			return false
		}
	}
	if len(it.values) == 0 {
		return false
	}
	it.cur = it.values[0]
	it.values = it.values[1:]
	return true
}

// Current returns the element Next advanced to.
func (it *Iter) Current() interface{} {
	return it.cur
}

// Err returns the error that stopped iteration, if any.
func (it *Iter) Err() error {
	return it.err
}

// listItemID pulls the ID field out of a resource value for use as the
// starting_after cursor.
func listItemID(v interface{}) string {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return ""
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return ""
	}
	id := rv.FieldByName("ID")
	if !id.IsValid() || id.Kind() != reflect.String {
		return ""
	}
	return id.String()
}
