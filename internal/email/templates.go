package email

import "html/template"

const layout = `<!DOCTYPE html>
<html lang="es">
<head><meta charset="UTF-8"><title>Medelle</title></head>
<body style="font-family: Arial, sans-serif; background-color: #f4f6f8; padding: 24px;">
  <div style="max-width: 560px; margin: 0 auto; background: #ffffff; border-radius: 8px; padding: 32px;">
    <h2 style="color: #2b3a55;">{{block "title" .}}{{end}}</h2>
    <p>Hola {{.Name}},</p>
    {{block "content" .}}{{end}}
    <p style="text-align: center; margin: 32px 0;">
      <a href="{{.Link}}" style="background-color: #4f7cff; color: #ffffff; padding: 12px 24px; border-radius: 6px; text-decoration: none;">{{block "action" .}}{{end}}</a>
    </p>
    <p style="font-size: 13px; color: #6b7280;">Este enlace expira en 30 minutos. Si no solicitaste este correo, puedes ignorarlo.</p>
    <p style="font-size: 13px; color: #6b7280;">El equipo de Medelle</p>
  </div>
</body>
</html>`

var verificationTmpl = template.Must(template.Must(template.New("verification").Parse(layout)).Parse(`
{{define "title"}}Verifica tu correo electrónico{{end}}
{{define "content"}}<p>Gracias por registrarte en Medelle. Para activar tu cuenta confirma tu dirección de correo electrónico.</p>{{end}}
{{define "action"}}Verificar correo{{end}}`))

var resetTmpl = template.Must(template.Must(template.New("reset").Parse(layout)).Parse(`
{{define "title"}}Restablece tu contraseña{{end}}
{{define "content"}}<p>Recibimos una solicitud para restablecer la contraseña de tu cuenta.</p>{{end}}
{{define "action"}}Restablecer contraseña{{end}}`))
