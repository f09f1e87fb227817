package config

import (
	"fmt"
	"strings"
)

// Validate 对整份配置做启动前校验；存储凭证错误在这里即视为致命。
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return newFieldError("server.port", fmt.Sprintf("无效端口: %d", c.Server.Port))
	}
	if strings.TrimSpace(c.Server.BaseURL) == "" {
		return newFieldError("server.base_url", "不能为空")
	}
	if strings.TrimSpace(c.Server.BasePath) == "" {
		return newFieldError("server.base_path", "不能为空")
	}
	if c.Cache.ChecksumBufferSize <= 0 {
		return newFieldError("cache.checksum_buffer_size", "必须为正数")
	}

	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateCloudflare(); err != nil {
		return err
	}
	return c.validateServers()
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "local":
		return nil
	case "s3":
		s3 := c.Storage.S3
		if strings.TrimSpace(s3.Endpoint) == "" {
			return newFieldError("storage.s3.endpoint", "s3 后端必须配置 endpoint")
		}
		if strings.TrimSpace(s3.Bucket) == "" {
			return newFieldError("storage.s3.bucket", "s3 后端必须配置 bucket")
		}
		if s3.AccessKey == "" || s3.SecretKey == "" {
			return newFieldError("storage.s3", "缺少 access_key/secret_key")
		}
		if strings.TrimSpace(s3.PublicURL) == "" {
			return newFieldError("storage.s3.public_url", "s3 后端必须配置 public_url")
		}
		return nil
	default:
		return newFieldError("storage.backend", fmt.Sprintf("未知后端: %s（支持 local/s3）", c.Storage.Backend))
	}
}

func (c *Config) validateCloudflare() error {
	if !c.Cloudflare.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Cloudflare.ZoneID) == "" {
		return newFieldError("cloudflare.zone_id", "启用 CDN 清理时必须配置")
	}
	if strings.TrimSpace(c.Cloudflare.APIToken) == "" {
		return newFieldError("cloudflare.api_token", "启用 CDN 清理时必须配置")
	}
	return nil
}

func (c *Config) validateServers() error {
	seen := make(map[string]struct{}, len(c.Servers))
	for _, s := range c.Servers {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return newFieldError(serverField("", "name"), "不能为空")
		}
		if strings.ContainsAny(name, "/\\") {
			return newFieldError(serverField(name, "name"), "不能包含路径分隔符")
		}
		if _, dup := seen[name]; dup {
			return newFieldError(serverField(name, "name"), "命名空间名称重复")
		}
		seen[name] = struct{}{}
	}
	return nil
}
