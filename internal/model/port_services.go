package model

import "strconv"

// DefaultPorts 未指定端口范围时探测的常见服务端口
var DefaultPorts = []uint16{
	21, 22, 23, 25, 53, 80, 110, 139, 443, 445,
	1433, 1521, 3306, 3389, 5432, 6379, 8080,
}

// serviceNames 端口号到协议名的静态映射
var serviceNames = map[uint16]string{
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	80:    "http",
	443:   "http",
	3306:  "mysql",
	5432:  "postgresql",
	6379:  "redis",
	27017: "mongodb",
}

// ServiceName 根据端口号返回协议名，未知端口返回 unknown_<port>
func ServiceName(port uint16) string {
	if name, ok := serviceNames[port]; ok {
		return name
	}
	return "unknown_" + strconv.Itoa(int(port))
}

// DefaultPortList 返回默认端口列表的副本
func DefaultPortList() []uint16 {
	ports := make([]uint16, len(DefaultPorts))
	copy(ports, DefaultPorts)
	return ports
}
