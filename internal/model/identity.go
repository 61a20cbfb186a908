package model

// IdentityKind 调用方类别
type IdentityKind int

const (
	// IdentityAnonymous 匿名调用方，以网络地址区分
	IdentityAnonymous IdentityKind = iota
	// IdentityRegistered 注册用户，以账号 ID 区分
	IdentityRegistered
)

// String 类别名称
func (k IdentityKind) String() string {
	if k == IdentityRegistered {
		return "registered"
	}
	return "anonymous"
}

// Identity 调用方身份
//
// 注册用户同样携带网络地址：限流始终按网络地址计算。
type Identity struct {
	Kind           IdentityKind
	NetworkAddress string
	AccountID      string
}

// Anonymous 构造匿名身份
func Anonymous(addr string) Identity {
	return Identity{Kind: IdentityAnonymous, NetworkAddress: addr}
}

// Registered 构造注册用户身份
func Registered(accountID, addr string) Identity {
	return Identity{Kind: IdentityRegistered, NetworkAddress: addr, AccountID: accountID}
}

// IsRegistered 是否为注册用户
func (i Identity) IsRegistered() bool {
	return i.Kind == IdentityRegistered
}

// Key 配额状态使用的 key
func (i Identity) Key() string {
	if i.IsRegistered() {
		return "user:" + i.AccountID
	}
	return "anon:" + i.NetworkAddress
}

// NetworkKey 限流使用的 key
func (i Identity) NetworkKey() string {
	return i.NetworkAddress
}
