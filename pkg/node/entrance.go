package node

// EntranceNode is the root of one context's invocation tree. PassQps,
// BlockQps, TotalQps, SuccessQps, CurThreadNum, BlockRequest, TotalRequest and
// TotalPass sum the children; AvgRt is the children's pass-qps weighted mean.
// Every other accessor (for example TotalSuccess, ExceptionQps, MaxSuccessQps)
// is not aggregated and reads the entrance node's own statistic node.
type EntranceNode struct {
	*DefaultNode
}

func NewEntranceNode(id string, clusterNode *ClusterNode) *EntranceNode {
	return &EntranceNode{DefaultNode: NewDefaultNode(id, clusterNode)}
}

func (n *EntranceNode) AvgRt() float64 {
	var total, totalQps float64
	for _, c := range n.Children() {
		total += c.AvgRt() * c.PassQps()
		totalQps += c.PassQps()
	}
	if totalQps == 0 {
		totalQps = 1
	}
	return total / totalQps
}

func (n *EntranceNode) PassQps() float64 {
	var r float64
	for _, c := range n.Children() {
		r += c.PassQps()
	}
	return r
}

func (n *EntranceNode) BlockQps() float64 {
	var r float64
	for _, c := range n.Children() {
		r += c.BlockQps()
	}
	return r
}

func (n *EntranceNode) TotalQps() float64 {
	var r float64
	for _, c := range n.Children() {
		r += c.TotalQps()
	}
	return r
}

func (n *EntranceNode) SuccessQps() float64 {
	var r float64
	for _, c := range n.Children() {
		r += c.SuccessQps()
	}
	return r
}

func (n *EntranceNode) CurThreadNum() int64 {
	var r int64
	for _, c := range n.Children() {
		r += c.CurThreadNum()
	}
	return r
}

func (n *EntranceNode) BlockRequest() int64 {
	var r int64
	for _, c := range n.Children() {
		r += c.BlockRequest()
	}
	return r
}

func (n *EntranceNode) TotalRequest() int64 {
	var r int64
	for _, c := range n.Children() {
		r += c.TotalRequest()
	}
	return r
}

func (n *EntranceNode) TotalPass() int64 {
	var r int64
	for _, c := range n.Children() {
		r += c.TotalPass()
	}
	return r
}
